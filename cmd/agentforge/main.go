package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "agentforge",
	Short:         "agentforge runs a tool-using reasoning agent",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// flags are parsed now, so --log-level can take effect
		return initLogger()
	},
}

func initLogger() error {
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return errors.Wrap(err, "invalid --log-level")
	}

	var w io.Writer = os.Stderr
	if viper.GetString("log-format") == "text" {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	// The verbose reporter has its own logger; only the global one is
	// leveled here.
	log.Logger = zerolog.New(w).With().Timestamp().Logger().Level(level)
	return nil
}

func initConfig(configPath string) error {
	viper.SetEnvPrefix("agentforge")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("agentforge")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.agentforge")
		if xdg, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(xdg + "/agentforge")
		}
	}

	err := viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// no config file; flags and env only
	} else if err != nil {
		return errors.Wrap(err, "read config")
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return errors.Wrap(err, "bind flags")
	}
	return initLogger()
}

// configPathFromArgs finds --config before cobra parses flags, so the file
// can supply defaults for every other flag.
func configPathFromArgs(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "--config" && i+1 < len(args):
			return args[i+1]
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}

func main() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default ./agentforge.yaml)")
	flags.String("log-level", "warn", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	addAgentFlags(flags)

	rootCmd.AddCommand(newRunCommand(), newEvalCommand())

	if err := initConfig(configPathFromArgs(os.Args[1:])); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	log.Debug().Str("config", viper.ConfigFileUsed()).Msg("loaded configuration")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
