package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/keyhouse-ops/watchdog/internal/agent/config"
	"github.com/keyhouse-ops/watchdog/internal/utils"
	"github.com/keyhouse-ops/watchdog/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "watchdog",
	Short:   "Reconciles keyhouse-declared access grants with local OS users and groups",
	Version: version.Detailed(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bindConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default "+config.DefaultConfigPath+")")
	rootCmd.PersistentFlags().String("base-url", "", "Keyhouse contents API base URL")
	rootCmd.PersistentFlags().String("token", "", "Keyhouse API bearer token")
	rootCmd.PersistentFlags().String("hostname", "", "Identity of this host for access filtering")
	rootCmd.PersistentFlags().String("branch", config.DefaultBranch, "Tracked branch holding declared state")
	rootCmd.PersistentFlags().String("state-dir", config.DefaultStateDir, "Directory for checkpoint, journal and lock")
	rootCmd.PersistentFlags().Duration("interval", config.DefaultInterval, "Interval between runs in daemon mode")
}

func main() {
	// .env is optional, used on dev hosts
	_ = godotenv.Load()

	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.RFC3339,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func bindConfig(cmd *cobra.Command) error {
	explicit := cmd.Flag("config").Changed
	path, _ := cmd.Flags().GetString("config")
	if !explicit {
		path = config.DefaultConfigPath
	}

	switch {
	case utils.FileExists(path):
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("config read '%s': %w", path, err)
		}
	case explicit:
		return fmt.Errorf("config file '%s' not found", path)
	}

	viper.BindPFlag("base_url", cmd.Flags().Lookup("base-url"))
	viper.BindPFlag("token", cmd.Flags().Lookup("token"))
	viper.BindPFlag("hostname", cmd.Flags().Lookup("hostname"))
	viper.BindPFlag("branch", cmd.Flags().Lookup("branch"))
	viper.BindPFlag("state_dir", cmd.Flags().Lookup("state-dir"))
	viper.BindPFlag("interval", cmd.Flags().Lookup("interval"))

	viper.SetEnvPrefix("WATCHDOG")
	viper.AutomaticEnv()

	return nil
}

// configFromViper builds and validates the agent config from file, env and
// flags.
func configFromViper() (*config.Config, error) {
	cfg := &config.Config{
		BaseURL:      viper.GetString("base_url"),
		Token:        viper.GetString("token"),
		Hostname:     viper.GetString("hostname"),
		Branch:       viper.GetString("branch"),
		StateDir:     viper.GetString("state_dir"),
		UserHomeRoot: viper.GetString("user_home_root"),
		Interval:     viper.GetDuration("interval"),
		Path:         viper.ConfigFileUsed(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
