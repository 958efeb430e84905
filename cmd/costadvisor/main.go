package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/younsl/costadvisor/internal/config"
	"github.com/younsl/costadvisor/internal/version"
	"github.com/younsl/costadvisor/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile string
	var showVersion bool

	rootCmd := &cobra.Command{
		Use:   "costadvisor",
		Short: "Ranked cost savings recommendations for EC2 and S3",
		Long: `costadvisor collects EC2 utilization and S3 storage layout, resolves
prices and ranks savings recommendations: stop, reserve or downsize idle
instances and add lifecycle rules to cold buckets.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Println(version.Get())
				return nil
			}
			cfg, err := loadConfig(v, configFile)
			if err != nil {
				return err
			}
			return runAdvise(cmd.Context(), cfg, os.Stdout)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Config file (YAML)")
	flags.String(config.KeyUser, "default", "User whose saved rules apply")
	flags.String(config.KeyRules, "", "Rules file (YAML or JSON) applied under the user's saved rules")
	flags.String(config.KeyPreferencesDir, "", "Directory holding saved rules per user")
	flags.String(config.KeyHistoryFile, "", "Recommendation history log (JSON lines)")
	flags.String(config.KeyLogLevel, "info", "Log level (debug, info, warn, error)")
	flags.String(config.KeyLogFormat, "console", "Log format (console, json)")

	local := rootCmd.Flags()
	local.BoolVarP(&showVersion, "version", "v", false, "Show version information")
	local.StringSliceP(config.KeyRegions, "r", nil, "AWS regions to check (comma separated, default: us-east-1)")
	local.StringP(config.KeyIntent, "i", "all", "What to evaluate (compute, storage, all)")
	local.String(config.KeyInput, "", "Read descriptors from a JSON file instead of AWS")
	local.Bool(config.KeyPricingAPI, true, "Query the AWS Pricing API before the fallback tables")
	local.Duration(config.KeyPricingTimeout, 0, "Timeout per Pricing API call (default 5s)")
	local.IntP(config.KeyTop, "n", 5, "Recommendations shown per domain")
	local.StringP(config.KeyOutput, "o", config.OutputTable, "Output format (table, json)")
	local.Int(config.KeyConcurrency, 8, "Instances evaluated in parallel")
	local.Int(config.KeyMaxObjects, 0, "Objects listed per bucket (default 1000000)")

	// Changed flags override the config file and environment
	_ = v.BindPFlags(flags)
	_ = v.BindPFlags(local)

	rootCmd.AddCommand(newRulesCmd(v, &configFile), newHistoryCmd(v, &configFile))
	return rootCmd
}

func loadConfig(v *viper.Viper, configFile string) (config.Config, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return config.Config{}, err
	}

	valid, invalid := utils.FilterValidRegions(cfg.Regions)
	for _, region := range invalid {
		fmt.Fprintf(os.Stderr, "Warning: Skipping invalid region '%s'\n", region)
	}
	if len(valid) == 0 {
		return config.Config{}, fmt.Errorf("no valid regions specified")
	}
	cfg.Regions = valid
	return cfg, nil
}
