package main

import (
	"fmt"

	"github.com/nhle/o365mail/internal/credential"
	"github.com/nhle/o365mail/internal/model"
	"github.com/nhle/o365mail/internal/ui/login"
)

func runLogin(e *env) error {
	v := &login.Values{
		Username: e.cfg.Account.Username,
		Email:    e.cfg.Account.Email,
		Server:   e.cfg.Account.Server,
	}
	if err := login.Run(v); err != nil {
		return err
	}

	if err := credential.SetPassword(v.Username, v.Password); err != nil {
		return err
	}

	e.cfg.Account = model.AccountConfig{
		Username:   v.Username,
		Email:      v.Email,
		Server:     v.Server,
		TimeoutSec: e.cfg.Account.TimeoutSec,
	}
	if err := model.SaveConfig(e.cfgPath, e.cfg); err != nil {
		return err
	}

	e.logger.Info("account saved", "username", v.Username, "config", e.cfgPath)
	fmt.Fprintf(e.stdout, "saved account %s\n", v.Username)
	return nil
}
