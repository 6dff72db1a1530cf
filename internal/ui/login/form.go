package login

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/charmbracelet/huh"
)

// Values holds what the user entered. Fields that are already set are
// shown as defaults.
type Values struct {
	Username string
	Email    string
	Server   string
	Password string
}

// NewForm builds the account form bound to v.
func NewForm(v *Values) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Description("Office 365 login (user@tenant.com)").
				Placeholder("user@example.com").
				Value(&v.Username).
				Validate(validateAddress("Username", true)),
			huh.NewInput().
				Title("Mailbox").
				Description("Shared mailbox to act on; leave empty for your own").
				Placeholder("shared@example.com").
				Value(&v.Email).
				Validate(validateAddress("Mailbox", false)),
			huh.NewInput().
				Title("Server").
				Description("Exchange Web Services host").
				Placeholder("outlook.office365.com").
				Value(&v.Server).
				Validate(validateRequired("Server")),
			huh.NewInput().
				Title("Password").
				Description("Stored in the system keyring").
				EchoMode(huh.EchoModePassword).
				Value(&v.Password).
				Validate(validateRequired("Password")),
		),
	).WithWidth(72)
}

// Run shows the form on the terminal and fills v.
func Run(v *Values) error {
	if err := NewForm(v).Run(); err != nil {
		return fmt.Errorf("login form: %w", err)
	}
	v.Username = strings.TrimSpace(v.Username)
	v.Email = strings.TrimSpace(v.Email)
	v.Server = strings.TrimSpace(v.Server)
	return nil
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateAddress(fieldName string, required bool) func(string) error {
	return func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" {
			if required {
				return fmt.Errorf("%s is required", fieldName)
			}
			return nil
		}
		if _, err := mail.ParseAddress(s); err != nil {
			return fmt.Errorf("%s must be an email address", fieldName)
		}
		return nil
	}
}
