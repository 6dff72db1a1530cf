package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/o365mail/internal/keys"
	"github.com/nhle/o365mail/internal/outlook"
	"github.com/nhle/o365mail/internal/ui/results"
)

func runSearch(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "search")
	var hasAttachments, isRead triStateFlag
	folder := fs.String("folder", e.cfg.Search.Folder, "inbox or sent")
	subject := fs.String("subject", "", "case-insensitive subject substring")
	fs.Var(&hasAttachments, "has-attachments", "true, false or empty for either")
	fs.Var(&isRead, "is-read", "true, false or empty for either")
	limit := fs.Int("limit", e.cfg.Search.Limit, "maximum number of results")
	saveDir := fs.String("save", "", "save attachments of every result into this directory")
	contains := fs.String("contains", "", "only save attachments whose name contains this")
	markRead := fs.Bool("mark-read", false, "mark every result as read")
	browse := fs.Bool("browse", false, "open the results in an interactive browser")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	s, closeLedger, err := openSession(ctx, e)
	if err != nil {
		return err
	}
	defer closeLedger()

	search := outlook.NewSearch(s, outlook.SearchQuery{
		Folder:          outlook.Folder(*folder),
		SubjectContains: *subject,
		HasAttachments:  hasAttachments.value,
		IsRead:          isRead.value,
		Limit:           *limit,
	})

	items, err := search.Run(ctx)
	if err != nil {
		return err
	}

	if *browse {
		dir := *saveDir
		if dir == "" {
			dir = e.cfg.Download.Dir
		}
		m := results.New(items, keys.DefaultKeyMap(), results.Options{
			Context:    ctx,
			Mailbox:    s.MailboxAddress(),
			Folder:     string(search.Query().Folder),
			SaveDir:    dir,
			SaveFilter: *contains,
		})
		_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		return err
	}

	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECEIVED\tFROM\tSUBJECT\tATTACHMENTS")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n",
			it.ReceivedAt.Format("2006-01-02 15:04"), it.From, it.Subject, len(it.Attachments))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, it := range items {
		if *saveDir != "" {
			paths, err := it.SaveAttachments(ctx, *saveDir, *contains)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintf(e.stdout, "saved %s\n", p)
			}
		}
		if *markRead {
			if err := it.MarkAsRead(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}
