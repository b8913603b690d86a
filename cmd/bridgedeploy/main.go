package main

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/compose-network/bridge-deployer/configs"
	"github.com/compose-network/bridge-deployer/internal/cli"
	"github.com/compose-network/bridge-deployer/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	appName   = "bridgedeploy"
	envPrefix = "BRIDGEDEPLOY"
)

var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         "Deploys the cross-chain job and bridge contracts to a local and a native chain",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Initialize(slog.LevelInfo, logger.FormatJSON)

		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		if execPath, err := os.Executable(); err == nil {
			execDir := filepath.Dir(execPath)
			viper.AddConfigPath(execDir)
		}
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")

		viper.SetEnvPrefix(envPrefix)
		viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
		viper.AutomaticEnv()

		if err := configs.SetDefaults(viper.GetViper()); err != nil {
			return err
		}

		// Try to read config file, but don't fail if it doesn't exist
		// Flags and environment can provide all necessary configuration
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				const errMsg = "error reading config file"
				slog.With("err", err.Error()).Error(errMsg)
				return errors.Join(err, errors.New(errMsg))
			}
			slog.Debug("no config file found, will rely on flags, environment and defaults")
		}

		if err := viper.Unmarshal(&configs.Values); err != nil {
			const errMsg = "unable to decode application config"
			slog.With("err", err.Error()).Error(errMsg)
			return errors.Join(err, errors.New(errMsg))
		}

		logger.Initialize(logger.ParseLevel(configs.Values.Log.Level), configs.Values.Log.Format)
		if used := viper.ConfigFileUsed(); used != "" {
			slog.With("config_file", used).Debug("config file loaded")
		}

		return nil
	},
}

func main() {
	if err := cli.DeclareFlags(rootCmd); err != nil {
		slog.With("err", err.Error()).Error("failed to declare flags")
		os.Exit(1)
	}
	rootCmd.AddCommand(cli.Commands()...)

	if err := rootCmd.Execute(); err != nil {
		slog.With("err", err.Error()).Error("failed to execute root command")
		os.Exit(1)
	}
}
