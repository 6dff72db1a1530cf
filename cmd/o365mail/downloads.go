package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/nhle/o365mail/internal/store"
)

func runDownloads(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "downloads")
	item := fs.String("item", "", "only entries of this message id")
	query := fs.String("query", "", "match subject or attachment name")
	limit := fs.Int("limit", 50, "maximum number of entries")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ledger, err := openLedger(e.cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer ledger.Close()

	filter := store.DownloadFilter{Limit: *limit}
	if *item != "" {
		filter.ItemID = item
	}
	if *query != "" {
		filter.Query = query
	}

	downloads, err := ledger.ListDownloads(ctx, filter)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SAVED\tSUBJECT\tATTACHMENT\tPATH")
	for _, d := range downloads {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			d.SavedAt.Local().Format("2006-01-02 15:04"), d.Subject, d.Attachment, d.Path)
	}
	return tw.Flush()
}
