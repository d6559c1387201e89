package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mmynk/canteen/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "canteen",
		Short:        "Campus canteen pre-order, split-bill and queue service",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", os.Getenv("CANTEEN_CONFIG"), "Path to a YAML or JSON config file")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newGrantStaffCommand())
	rootCmd.AddCommand(newQueueCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by --config, then overlays the
// environment. Command flags are applied by the caller.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	config.FromEnv(&cfg)
	return cfg, nil
}
