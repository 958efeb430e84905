package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/younsl/costadvisor/pkg/rules"
	"github.com/younsl/costadvisor/pkg/store"
)

func newRulesCmd(v *viper.Viper, configFile *string) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Show or change the rules saved for a user",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective rules as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, *configFile)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			_, set, err := userRules(cfg, logger)
			if err != nil {
				return err
			}
			data, err := rules.Encode(set)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set FILE",
		Short: "Save the rules in FILE (YAML or JSON) for the user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, *configFile)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			set, err := rules.Load(args[0])
			if err != nil {
				return err
			}
			prefs, err := store.NewPreferences(cfg.PreferencesDir, rules.Defaults(), logger)
			if err != nil {
				return err
			}
			if err := prefs.Save(cfg.User, set); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved rules for %s\n", cfg.User)
			return nil
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the user's saved rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, *configFile)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			prefs, err := store.NewPreferences(cfg.PreferencesDir, rules.Defaults(), logger)
			if err != nil {
				return err
			}
			if err := prefs.Delete(cfg.User); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset rules for %s\n", cfg.User)
			return nil
		},
	}

	rulesCmd.AddCommand(showCmd, setCmd, resetCmd)
	return rulesCmd
}

func newHistoryCmd(v *viper.Viper, configFile *string) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent recommendation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, *configFile)
			if err != nil {
				return err
			}
			history, err := store.NewHistory(cfg.HistoryFile)
			if err != nil {
				return err
			}
			entries, err := history.Recent(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No history recorded.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tUSER\tINTENT\tCODE\tRECOMMENDATIONS\tSAVINGS/MO\tSUMMARY")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t$%s\t%s\n",
					humanize.Time(e.Timestamp),
					e.User,
					e.Intent,
					e.Code,
					len(e.RecommendationIDs),
					humanize.FormatFloat("#,###.##", e.TotalSavings),
					e.Summary,
				)
			}
			return w.Flush()
		},
	}

	historyCmd.Flags().IntVarP(&limit, "limit", "n", 10, "Entries to show (0 for all)")
	return historyCmd
}
