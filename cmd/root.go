package cmd

import (
	"fmt"
	"os"

	"race-registration/internal/config"
	"race-registration/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "race-registration",
	Short: "Race Registration Lifecycle Service",
	Long: `A sport-event registration service built with Go.
This service provides:
- Capacity-safe registration starts under concurrent load
- Registration window and publication policy enforcement
- Time-based pricing tier resolution
- Group discount synchronization
- Expired registration hold cleanup
Example usage:
  race-registration server --port 8080   # Start the registration API
  race-registration sweep --interval 60  # Run the expiration sweeper`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := config.Get()
		if err := logger.InitWithConfig(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.FilePath); err != nil {
			// Fallback to simple init if config-based init fails
			logger.Init(verbose)
			logger.Warn("Failed to initialize logger with config, using fallback: %v", err)
		}
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	config.Init()
}
