// Package cli is the milesofsmiles command line: the API server plus the
// operator commands that work on the same stores.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"milesofsmiles/api/internal/config"
)

var (
	cfgFile   string
	appConfig config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mos",
	Short: "Miles of Smiles content service",
	Long: `mos serves the Miles of Smiles site content over HTTP, keeps every
instance in sync through the storage bus, and mirrors snapshots to the
configured remote store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./mos.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")
}

func initializeConfig(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	v := config.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("mos")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return fmt.Errorf("read config: %w", err)
		}
	}

	flags := cmd.Flags()
	for key, flag := range map[string]string{"log_level": "log-level", "log_format": "log-format"} {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if err := configureLogging(cfg); err != nil {
		return err
	}
	if used := v.ConfigFileUsed(); used != "" {
		logrus.WithField("file", used).Debug("using config file")
	}
	appConfig = cfg
	return nil
}

func configureLogging(cfg config.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	logrus.SetLevel(level)
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log_format %q", cfg.LogFormat)
	}
	return nil
}
