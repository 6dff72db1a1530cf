package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nhle/o365mail/internal/outlook"
)

func runSend(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "send")
	var to, cc, bcc, attach, inline listFlag
	fs.Var(&to, "to", "recipient (repeatable, comma-separated)")
	fs.Var(&cc, "cc", "carbon-copy recipient")
	fs.Var(&bcc, "bcc", "blind carbon-copy recipient")
	fs.Var(&attach, "attach", "file to attach")
	fs.Var(&inline, "inline", "image to embed, referenced as cid:<file name>")
	subject := fs.String("subject", "", "subject line")
	body := fs.String("body", "", "message body")
	bodyFile := fs.String("body-file", "", "read the body from a file")
	html := fs.Bool("html", false, "send the body as HTML")
	importance := fs.String("importance", string(outlook.ImportanceNormal), "High, Normal or Low")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	content := *body
	if *bodyFile != "" {
		data, err := os.ReadFile(*bodyFile)
		if err != nil {
			return fmt.Errorf("reading body: %w", err)
		}
		content = string(data)
	}

	b := outlook.TextBody(content)
	if *html {
		b = outlook.HTMLBody(content)
	}

	s, closeLedger, err := openSession(ctx, e)
	if err != nil {
		return err
	}
	defer closeLedger()

	c := outlook.NewComposer(s)
	msg, err := c.Compose(outlook.Draft{
		To:         to,
		Cc:         cc,
		Bcc:        bcc,
		Subject:    *subject,
		Body:       b,
		Importance: *importance,
	})
	if err != nil {
		return err
	}

	if err := c.Attach(msg, attach, inline); err != nil {
		return err
	}

	if err := c.Send(ctx, msg); err != nil {
		return err
	}

	fmt.Fprintf(e.stdout, "sent %q from %s\n", msg.Subject, s.MailboxAddress())
	return nil
}
