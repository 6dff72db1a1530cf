package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nhle/o365mail/internal/credential"
	"github.com/nhle/o365mail/internal/model"
	"github.com/nhle/o365mail/internal/outlook"
	"github.com/nhle/o365mail/internal/store"
)

const usage = `usage: o365mail [-config path] [-v] <command> [flags]

commands:
  login      store account settings and password
  logout     remove the stored password and username
  send       compose and send a message
  search     search a folder, optionally saving attachments
  downloads  list attachments saved by search -save
`

// env carries what every subcommand needs.
type env struct {
	cfg     *model.AppConfig
	cfgPath string
	logger  *slog.Logger
	stdout  io.Writer
	stderr  io.Writer
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := flag.NewFlagSet("o365mail", flag.ContinueOnError)
	root.SetOutput(stderr)
	root.Usage = func() { fmt.Fprint(stderr, usage) }
	cfgPath := root.String("config", model.DefaultConfigPath(), "path to config.yaml")
	verbose := root.Bool("v", false, "enable debug logging")

	if err := root.Parse(args); err != nil {
		return 2
	}
	if root.NArg() == 0 {
		root.Usage()
		return 2
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := model.LoadConfig(*cfgPath)
	if err != nil {
		logger.Error("load config", "error", err)
		return 1
	}

	e := &env{cfg: cfg, cfgPath: *cfgPath, logger: logger, stdout: stdout, stderr: stderr}

	cmd, cmdArgs := root.Arg(0), root.Args()[1:]
	switch cmd {
	case "login":
		err = runLogin(e)
	case "logout":
		err = runLogout(e)
	case "send":
		err = runSend(ctx, e, cmdArgs)
	case "search":
		err = runSearch(ctx, e, cmdArgs)
	case "downloads":
		err = runDownloads(ctx, e, cmdArgs)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		root.Usage()
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case outlook.IsValidationError(err), isUsageError(err):
		logger.Error(cmd+" failed", "error", err)
		return 2
	default:
		logger.Error(cmd+" failed", "error", err)
		return 1
	}
}

// openSession authenticates against the configured mailbox. The returned
// close function releases the download ledger.
func openSession(ctx context.Context, e *env) (*outlook.Session, func(), error) {
	acct := e.cfg.Account
	if acct.Username == "" {
		return nil, nil, usageErrorf("no username configured; run o365mail login")
	}

	password, err := credential.Password(acct.Username)
	if err != nil {
		return nil, nil, fmt.Errorf("loading password for %s: %w", acct.Username, err)
	}

	ledger, err := openLedger(e.cfg.Ledger.Path)
	if err != nil {
		return nil, nil, err
	}

	s := outlook.NewSession(
		outlook.Credentials{
			Username: acct.Username,
			Password: password,
			Email:    acct.Email,
		},
		outlook.WithServer(acct.Server),
		outlook.WithTimeout(time.Duration(acct.TimeoutSec)*time.Second),
		outlook.WithLogger(e.logger),
		outlook.WithRecorder(ledger),
	)

	if err := s.Authenticate(ctx); err != nil {
		ledger.Close()
		return nil, nil, err
	}
	e.logger.Debug("authenticated", "username", s.Username(), "mailbox", s.MailboxAddress())

	return s, func() { ledger.Close() }, nil
}

func openLedger(path string) (*store.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	ledger, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening download ledger %s: %w", path, err)
	}
	return ledger, nil
}
