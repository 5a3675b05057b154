package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firmkit/tplsync/internal/syncer"
	"github.com/firmkit/tplsync/internal/templates"
)

var (
	updateName string
	updateAll  bool
	updateYes  bool
)

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().StringVar(&updateName, "name", "", "name of the local template to send")
	updateCmd.Flags().BoolVar(&updateAll, "all", false, "send every local template")
	updateCmd.Flags().BoolVarP(&updateYes, "yes", "y", false, "do not ask before overwriting remote templates")
	updateCmd.MarkFlagsMutuallyExclusive("name", "all")
	updateCmd.MarkFlagsOneRequired("name", "all")
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Send local account templates to a firm",
	Long: `Send local account templates to one or more firms. A template the firm
does not know yet is created there and its new id is stored in the config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if updateAll && !updateYes && IsInteractive() {
			ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "This will overwrite the templates of the firm. Do you want to proceed?")
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
			if updateAll {
				step := startProgress(cmd.ErrOrStderr(), "Sending templates to firm %s", firm)
				summary, err := svc.PushAll(ctx, firm)
				step.Finish(err)
				return summary, err
			}
			summary := syncer.Summary{Firm: firm}
			action, err := svc.PushTemplate(ctx, firm, updateName)
			if errors.Is(err, templates.ErrTemplateNotFound) {
				return summary, fmt.Errorf("no local template named %q in %s", updateName, sess.cfg.TemplatesDir)
			}
			if err != nil {
				return skipOrFail(cmd.ErrOrStderr(), summary, updateName, 0, err)
			}
			switch action {
			case syncer.ActionCreated:
				summary.Created = 1
			case syncer.ActionUpdated:
				summary.Updated = 1
			}
			summary.Complete = true
			if !IsJSONOutput() {
				fmt.Fprintf(cmd.OutOrStdout(), "Template %s %s in firm %s.\n", updateName, action, firm)
			}
			return summary, nil
		}

		summaries, err := svc.ForEachFirm(ctx, firms, op)
		if outErr := writeSummaries(cmd.OutOrStdout(), summaries, updateAll); outErr != nil && err == nil {
			err = outErr
		}
		return err
	},
}
