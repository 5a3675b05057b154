package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/firmkit/tplsync/internal/db"
	"github.com/firmkit/tplsync/internal/models"
)

var (
	historyLimit    int
	historyTemplate string
	historyType     string
	historySince    string
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show")
	historyCmd.Flags().StringVar(&historyTemplate, "template", "", "only entries of this template")
	historyCmd.Flags().StringVar(&historyType, "type", "", "only entries of this type (e.g. template.saved)")
	historyCmd.Flags().StringVar(&historySince, "since", "", "only entries newer than this duration (e.g. 24h)")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent sync history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := GetConfig()

		query := db.EventQuery{Limit: historyLimit}
		if historyTemplate != "" {
			query.EntityID = &historyTemplate
		}
		if historyType != "" {
			eventType := models.EventType(historyType)
			query.Type = &eventType
		}
		if historySince != "" {
			d, err := time.ParseDuration(historySince)
			if err != nil {
				return fmt.Errorf("invalid --since: %w", err)
			}
			since := time.Now().Add(-d)
			query.Since = &since
		}
		if len(firmFlags) == 1 {
			query.Firm = &firmFlags[0]
		}

		database, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		entries, err := db.NewEventRepository(database).Recent(ctx, query)
		if err != nil {
			return err
		}

		if IsJSONOutput() {
			return WriteOutput(cmd.OutOrStdout(), entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No history yet.")
			return nil
		}
		tbl := newTable("TIME", "EVENT", "FIRM", "SUBJECT", "DETAILS")
		for _, e := range entries {
			tbl.Add(
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				formatEventType(e.Type),
				e.Firm,
				e.EntityID,
				strings.TrimSpace(string(e.Payload)),
			)
		}
		return tbl.Render(cmd.OutOrStdout())
	},
}
