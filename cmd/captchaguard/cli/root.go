package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tkingovr/captcha-guard/internal/config"
	"github.com/tkingovr/captcha-guard/internal/logging"
)

var (
	cfgFile   string
	envFile   string
	logFormat string
	verbose   bool
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "captchaguard",
	Short: "CaptchaGuard - reCAPTCHA enforcement in front of HTTP services",
	Long: `CaptchaGuard validates reCAPTCHA responses on selected HTTP requests
before they reach your application. Requests matching the configured URL
patterns and methods must carry a valid challenge response; everything
else is forwarded untouched.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(os.Stderr, logFormat, verbose)
		if err != nil {
			return err
		}
		logger = l
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "dotenv file with CAPTCHAGUARD_* variables")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatJSON, "log format: json, text or console")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
