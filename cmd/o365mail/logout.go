package main

import (
	"errors"
	"fmt"

	"github.com/nhle/o365mail/internal/credential"
	"github.com/nhle/o365mail/internal/model"
)

func runLogout(e *env) error {
	username := e.cfg.Account.Username
	if username == "" {
		return usageErrorf("no account configured")
	}

	err := credential.DeletePassword(username)
	switch {
	case errors.Is(err, credential.ErrNotFound):
		e.logger.Warn("no stored password", "username", username)
	case err != nil:
		return err
	}

	e.cfg.Account = model.AccountConfig{
		Email:      e.cfg.Account.Email,
		Server:     e.cfg.Account.Server,
		TimeoutSec: e.cfg.Account.TimeoutSec,
	}
	if err := model.SaveConfig(e.cfgPath, e.cfg); err != nil {
		return err
	}

	e.logger.Info("account removed", "username", username, "config", e.cfgPath)
	fmt.Fprintf(e.stdout, "removed account %s\n", username)
	return nil
}
