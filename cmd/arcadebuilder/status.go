package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"git.home.luguber.info/inful/arcadebuilder/internal/state"
)

// printStatus writes the publish records as a table, one row per game.
func printStatus(ctx context.Context, store state.Store, w io.Writer) error {
	records, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "No games published yet.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "GAME\tVERSION\tCOMMIT\tPUBLISHED")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			rec.Name,
			shortID(rec.Version),
			shortID(rec.Commit),
			rec.PublishedAt.Format("2006-01-02 15:04:05 MST"))
	}
	return tw.Flush()
}

// resetGame deletes a game's publish record so the next run rebuilds it.
// The published tree itself is left in place.
func resetGame(ctx context.Context, store state.Store, w io.Writer, name string) error {
	rec, err := store.Get(ctx, name)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no publish record for game: %s", name)
	}
	if err := store.Delete(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(w, "Cleared publish record for %s (was %s); next run rebuilds it.\n",
		name, shortID(rec.Version))
	return nil
}

func shortID(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
