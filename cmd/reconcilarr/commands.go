package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/amaumene/reconcilarr/internal/controllers"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// withApp wires the components for one-shot commands. The scheduler is
// not started.
func withApp(fn func(ctx context.Context, a *app, out io.Writer, owner string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd.Context(), a, cmd.OutOrStdout(), args[0])
	}
}

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check OWNER",
		Short: "Run a monitoring check for one owner",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, out io.Writer, owner string) error {
			if err := a.cfg.ValidateServe(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			result, err := a.monitor.CheckUser(ctx, owner)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Checked %d entities in %s: %d downloaded, %d grabbed, %d missing, %d failed\n",
				result.Checked, result.Duration.Round(time.Millisecond),
				result.Downloaded, result.Grabbed, result.Missing, result.Failed)
			printItemErrors(out, result.Errors)
			return nil
		}),
	}
}

func newScanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scan OWNER",
		Short: "Scan the owner's watch directories once",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, out io.Writer, owner string) error {
			result, err := a.watcher.ScanUser(ctx, owner)
			if result == nil {
				return err
			}
			fmt.Fprintf(out, "Found %d files: %d moved, %d pending, %d skipped, %d failed\n",
				result.Found, result.Moved, result.Pending, result.Skipped, result.Failed)
			printItemErrors(out, result.Errors)
			return err
		}),
	}
}

func newPendingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pending OWNER",
		Short: "List files waiting for approval",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, out io.Writer, owner string) error {
			pending, err := a.watcher.PendingFiles(owner)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Fprintln(out, "No pending files")
				return nil
			}

			rows := make([][]string, 0, len(pending))
			for _, p := range pending {
				rows = append(rows, []string{
					p.ID,
					string(p.MediaKind),
					p.SourcePath,
					p.DestPath,
					humanize.Bytes(uint64(p.Size)),
					humanize.Time(p.DetectedAt),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Kind", "Source", "Destination", "Size", "Detected"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		}),
	}
}

func newRenameCommand() *cobra.Command {
	var formats controllers.NamingFormats

	renameCmd := &cobra.Command{
		Use:   "rename",
		Short: "Preview or apply library renames",
	}
	renameCmd.PersistentFlags().StringVar(&formats.Movie, "movie-format", "", "Movie naming format (defaults to the owner's setting)")
	renameCmd.PersistentFlags().StringVar(&formats.Series, "series-format", "", "Series naming format (defaults to the owner's setting)")

	renameCmd.AddCommand(&cobra.Command{
		Use:   "preview OWNER",
		Short: "Show the renames the naming formats would produce",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, out io.Writer, owner string) error {
			proposals, err := a.renamer.PreviewRenames(ctx, owner, formats)
			if err != nil {
				return err
			}
			printProposals(out, proposals)
			return nil
		}),
	})

	renameCmd.AddCommand(&cobra.Command{
		Use:   "apply OWNER",
		Short: "Apply every previewed rename",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, out io.Writer, owner string) error {
			proposals, err := a.renamer.PreviewRenames(ctx, owner, formats)
			if err != nil {
				return err
			}
			if len(proposals) == 0 {
				fmt.Fprintln(out, "Nothing to rename")
				return nil
			}
			result := a.renamer.ApplyRenames(ctx, owner, proposals)
			fmt.Fprintf(out, "Renamed %d files, %d failed\n", result.Succeeded, result.Failed)
			printItemErrors(out, result.Errors)
			return nil
		}),
	})

	renameCmd.AddCommand(&cobra.Command{
		Use:   "auto OWNER",
		Short: "Run the owner's auto-rename pass with the stored formats",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, out io.Writer, owner string) error {
			result, err := a.scheduler.TriggerRename(ctx, owner)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Renamed %d files, %d failed\n", result.Succeeded, result.Failed)
			printItemErrors(out, result.Errors)
			return nil
		}),
	})

	return renameCmd
}

func printProposals(out io.Writer, proposals []controllers.RenameProposal) {
	if len(proposals) == 0 {
		fmt.Fprintln(out, "Nothing to rename")
		return
	}
	rows := make([][]string, 0, len(proposals))
	for _, p := range proposals {
		episode := ""
		if p.Season > 0 || p.Episode > 0 {
			episode = fmt.Sprintf("S%02dE%02d", p.Season, p.Episode)
		}
		rows = append(rows, []string{
			string(p.Kind),
			strconv.FormatUint(p.EntityID, 10),
			episode,
			p.CurrentPath,
			p.NewPath,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Kind", "Entity", "Episode", "Current", "New"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	))
}

func printItemErrors(out io.Writer, errs []controllers.ItemError) {
	if len(errs) == 0 {
		return
	}
	rows := make([][]string, 0, len(errs))
	for _, e := range errs {
		entity := ""
		if e.EntityID != 0 {
			entity = strconv.FormatUint(e.EntityID, 10)
		}
		rows = append(rows, []string{entity, e.Path, e.Reason})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Entity", "Path", "Reason"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft},
	))
}
