package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/firmkit/tplsync/internal/vault"
)

var (
	authorizeCode       string
	authorizeSetDefault bool
)

func init() {
	rootCmd.AddCommand(authorizeCmd)
	authorizeCmd.Flags().StringVar(&authorizeCode, "code", "", "authorization code (prompted when omitted)")
	authorizeCmd.Flags().BoolVar(&authorizeSetDefault, "set-default", false, "make the firm the default firm")
}

var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Authorize tplsync for a firm",
	Long: `Authorize tplsync for a firm.

Open the printed URL, grant access and paste the authorization code. The
resulting token pair is stored and refreshed automatically afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := GetConfig()
		if err := cfg.RequireClient(); err != nil {
			return &PreflightError{
				Message:  err.Error(),
				Hint:     "Set SF_API_CLIENT_ID and SF_API_SECRET, or client_id and client_secret in the config",
				NextStep: "tplsync config show",
			}
		}

		sess, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		firms, err := resolveFirms(ctx, sess.tokens, cfg.DefaultFirm)
		if err != nil {
			return err
		}
		if len(firms) != 1 {
			return fmt.Errorf("authorize takes a single firm, got %d", len(firms))
		}
		firm := firms[0]

		code := strings.TrimSpace(authorizeCode)
		if code == "" {
			if IsNonInteractive() {
				return &PreflightError{
					Message:  "authorization code is required",
					Hint:     "Open " + cfg.AuthorizeURL(firm) + " and pass the code with --code",
					NextStep: "tplsync authorize --firm " + firm + " --code <code>",
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Open the following URL, grant access and copy the authorization code:\n\n  %s\n\n", cfg.AuthorizeURL(firm))
			code, err = promptLine(cmd.InOrStdin(), cmd.OutOrStdout(), "Authorization code: ")
			if err != nil {
				return err
			}
		}

		step := startProgress(cmd.ErrOrStderr(), "Requesting tokens for firm %s", firm)
		err = sess.client.Authorize(ctx, firm, code)
		step.Finish(err)
		if err != nil {
			return err
		}

		current, err := sess.tokens.DefaultFirm(ctx)
		if err != nil && !errors.Is(err, vault.ErrNoDefaultFirm) {
			return err
		}
		madeDefault := false
		if authorizeSetDefault || current == "" {
			if err := sess.tokens.SetDefaultFirm(ctx, firm); err != nil {
				return err
			}
			madeDefault = true
		}

		if IsJSONOutput() {
			return WriteOutput(cmd.OutOrStdout(), map[string]any{
				"firm":    firm,
				"default": madeDefault || current == firm,
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Firm %s authorized.\n", firm)
		if madeDefault {
			fmt.Fprintf(cmd.OutOrStdout(), "Firm %s is now the default firm.\n", firm)
		}
		return nil
	},
}
