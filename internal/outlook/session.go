package outlook

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/nhle/o365mail/internal/ews"
	"github.com/nhle/o365mail/internal/model"
)

// Credentials identify the authenticating user and the mailbox to act on.
// Email may name a shared mailbox; when empty it defaults to Username.
type Credentials struct {
	Username string
	Password string
	Email    string
}

// mailboxAddress returns the delegate mailbox address.
func (c Credentials) mailboxAddress() string {
	if c.Email == "" {
		return c.Username
	}
	return c.Email
}

// DialFunc binds a mailbox for the given config and delegate address.
type DialFunc func(ctx context.Context, cfg ews.Config, address string) (Mailbox, error)

// Recorder receives one entry per attachment written to disk.
type Recorder interface {
	RecordDownload(ctx context.Context, d model.Download) error
}

// Session holds the credentials and, after Authenticate, the mailbox
// handle shared by Composer, Search and MailboxItem.
type Session struct {
	creds    Credentials
	server   string
	timeout  time.Duration
	dial     DialFunc
	fs       afero.Fs
	logger   *slog.Logger
	recorder Recorder

	attempted bool
	mailbox   Mailbox
	authErr   error
}

// Option configures a Session.
type Option func(*Session)

// WithServer overrides the EWS host (default outlook.office365.com).
func WithServer(server string) Option {
	return func(s *Session) { s.server = server }
}

// WithTimeout bounds each round trip to the server.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// WithDialer replaces the function used to bind the mailbox.
func WithDialer(dial DialFunc) Option {
	return func(s *Session) { s.dial = dial }
}

// WithFs sets the filesystem used for reading and writing attachments.
func WithFs(fs afero.Fs) Option {
	return func(s *Session) { s.fs = fs }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithRecorder records every attachment saved through the session.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// NewSession creates an unauthenticated session. No request is made.
func NewSession(creds Credentials, opts ...Option) *Session {
	s := &Session{
		creds:  creds,
		server: ews.DefaultServer,
		fs:     afero.NewOsFs(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		dial: func(ctx context.Context, cfg ews.Config, address string) (Mailbox, error) {
			return ews.Dial(ctx, cfg, address)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Username returns the authenticating user.
func (s *Session) Username() string {
	return s.creds.Username
}

// MailboxAddress returns the address of the mailbox the session acts on.
func (s *Session) MailboxAddress() string {
	return s.creds.mailboxAddress()
}

// Authenticate binds the delegate mailbox with autodiscovery disabled.
// The round trip happens at most once: later calls return the outcome
// of the first attempt. Every failure is an *AuthenticationError.
func (s *Session) Authenticate(ctx context.Context) error {
	if s.attempted {
		return s.authErr
	}
	s.attempted = true

	cfg := ews.Config{
		Server:   s.server,
		Username: s.creds.Username,
		Password: s.creds.Password,
		Timeout:  s.timeout,
	}

	mb, err := s.dial(ctx, cfg, s.MailboxAddress())
	if err == nil && mb == nil {
		err = ErrNotAuthenticated
	}
	if err != nil {
		s.authErr = &AuthenticationError{
			Username: s.creds.Username,
			Mailbox:  s.MailboxAddress(),
			Err:      err,
		}
		s.logger.Warn("authentication failed",
			"username", s.creds.Username,
			"mailbox", s.MailboxAddress(),
			"error", err,
		)
		return s.authErr
	}

	s.mailbox = mb
	s.logger.Info("mailbox bound",
		"username", s.creds.Username,
		"mailbox", mb.PrimaryAddress(),
	)
	return nil
}

// Authenticated reports whether Authenticate succeeded.
func (s *Session) Authenticated() bool {
	return s.mailbox != nil
}

// Mailbox returns the authenticated mailbox handle.
func (s *Session) Mailbox() (Mailbox, error) {
	if s.mailbox == nil {
		return nil, ErrNotAuthenticated
	}
	return s.mailbox, nil
}
