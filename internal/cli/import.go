package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/firmkit/tplsync/internal/syncer"
)

var (
	importID  int64
	importAll bool
	importYes bool
)

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().Int64Var(&importID, "id", 0, "remote id of the template to import")
	importCmd.Flags().BoolVar(&importAll, "all", false, "import every template of the firm")
	importCmd.Flags().BoolVarP(&importYes, "yes", "y", false, "do not ask before overwriting local templates")
	importCmd.MarkFlagsMutuallyExclusive("id", "all")
	importCmd.MarkFlagsOneRequired("id", "all")
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import account templates from a firm",
	Long: `Import account templates from one or more firms into the templates
directory. Each firm's remote id is added to the template's config, so the
same template can be imported from several firms.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if !importAll && importID <= 0 {
			return fmt.Errorf("--id must be a positive template id")
		}

		if !importYes && IsInteractive() {
			ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "This will overwrite existing templates. Do you want to proceed?")
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("operation cancelled")
			}
		}

		sess, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		firms, err := resolveFirms(ctx, sess.tokens, sess.cfg.DefaultFirm)
		if err != nil {
			return err
		}
		svc := sess.syncService()

		op := func(ctx context.Context, firm string) (syncer.Summary, error) {
			if importAll {
				step := startProgress(cmd.ErrOrStderr(), "Importing templates of firm %s", firm)
				summary, err := svc.ImportAll(ctx, firm)
				step.Finish(err)
				return summary, err
			}
			summary := syncer.Summary{Firm: firm}
			name, err := svc.ImportTemplate(ctx, firm, importID)
			if err != nil {
				return skipOrFail(cmd.ErrOrStderr(), summary, fmt.Sprintf("#%d", importID), importID, err)
			}
			summary.Saved = 1
			summary.Complete = true
			if !IsJSONOutput() {
				fmt.Fprintf(cmd.OutOrStdout(), "Template %s imported from firm %s (id %d).\n", name, firm, importID)
			}
			return summary, nil
		}

		summaries, err := svc.ForEachFirm(ctx, firms, op)
		if outErr := writeSummaries(cmd.OutOrStdout(), summaries, importAll); outErr != nil && err == nil {
			err = outErr
		}
		return err
	},
}

// skipOrFail turns a recoverable single-template failure into a skip.
func skipOrFail(out io.Writer, summary syncer.Summary, name string, id int64, err error) (syncer.Summary, error) {
	if !syncer.Recoverable(err) {
		return summary, err
	}
	summary.Skipped = append(summary.Skipped, syncer.Skip{Name: name, ID: id, Reason: err.Error()})
	summary.Complete = true
	if !IsJSONOutput() {
		fmt.Fprintf(out, "%s %s: %v\n", colorize("skipped", styleSkip), name, err)
	}
	return summary, nil
}

// writeSummaries prints the per-firm results. Single-template runs print
// their own line and only need the JSON form.
func writeSummaries(out io.Writer, summaries []syncer.Summary, table bool) error {
	if IsJSONOutput() {
		return WriteOutput(out, summaries)
	}
	if !table {
		return nil
	}

	tbl := newTable("FIRM", "SAVED", "CREATED", "UPDATED", "SKIPPED", "COMPLETE")
	for _, s := range summaries {
		tbl.Add(
			s.Firm,
			strconv.Itoa(s.Saved),
			strconv.Itoa(s.Created),
			strconv.Itoa(s.Updated),
			strconv.Itoa(len(s.Skipped)),
			yesNo(s.Complete),
		)
	}
	if err := tbl.Render(out); err != nil {
		return err
	}
	for _, s := range summaries {
		for _, skip := range s.Skipped {
			fmt.Fprintf(out, "%s %s: %s\n", colorize("skipped", styleSkip), skip.Name, skip.Reason)
		}
	}
	return nil
}
