package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/firmkit/tplsync/internal/vault"
)

func init() {
	rootCmd.AddCommand(firmsCmd)
	firmsCmd.AddCommand(firmsDefaultCmd)
}

type firmRow struct {
	Firm    string `json:"firm"`
	Default bool   `json:"default"`
	Updated string `json:"tokens_updated_at,omitempty"`
}

var firmsCmd = &cobra.Command{
	Use:   "firms",
	Short: "List authorized firms",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		firms, err := sess.tokens.Firms(ctx)
		if err != nil {
			return err
		}
		current, err := sess.tokens.DefaultFirm(ctx)
		if err != nil && !errors.Is(err, vault.ErrNoDefaultFirm) {
			return err
		}

		rows := make([]firmRow, 0, len(firms))
		for _, firm := range firms {
			row := firmRow{Firm: firm, Default: firm == current}
			if pair, ok, err := sess.tokens.Get(ctx, firm); err == nil && ok && !pair.UpdatedAt.IsZero() {
				row.Updated = pair.UpdatedAt.Local().Format("2006-01-02 15:04")
			}
			rows = append(rows, row)
		}

		if IsJSONOutput() {
			return WriteOutput(cmd.OutOrStdout(), rows)
		}
		if len(rows) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No authorized firms. Run `tplsync authorize --firm <id>`.")
			return nil
		}
		tbl := newTable("FIRM", "DEFAULT", "TOKENS UPDATED")
		for _, row := range rows {
			tbl.Add(row.Firm, yesNo(row.Default), row.Updated)
		}
		return tbl.Render(cmd.OutOrStdout())
	},
}

var firmsDefaultCmd = &cobra.Command{
	Use:   "default [firm-id]",
	Short: "Show or set the default firm",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		if len(args) == 0 {
			current, err := sess.tokens.DefaultFirm(ctx)
			if errors.Is(err, vault.ErrNoDefaultFirm) {
				fmt.Fprintln(cmd.OutOrStdout(), "No default firm set.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), current)
			return nil
		}

		firm := strings.TrimSpace(args[0])
		if _, ok, err := sess.tokens.Get(ctx, firm); err != nil {
			return err
		} else if !ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: firm %s has no stored tokens yet.\n", firm)
		}
		if err := sess.tokens.SetDefaultFirm(ctx, firm); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Default firm set to %s.\n", firm)
		return nil
	},
}
