package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/martinemde/agentforge/agent"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [task...]",
		Short: "Run the agent on one task and print its answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.LocalFlags()); err != nil {
				return errors.Wrap(err, "bind flags")
			}

			mode, ok := agent.ParseMode(viper.GetString("mode"))
			if !ok {
				return errors.Errorf("unknown mode %q (available: %s)", viper.GetString("mode"), modeList())
			}

			cfg, client, dispatcher, err := components()
			if err != nil {
				return err
			}
			defer client.Close()

			cfg.Mode = mode
			cfg.Verbose = viper.GetBool("verbose")
			a := agent.New(cfg, client, dispatcher, agent.WithVerboseOutput(os.Stderr))

			result, err := a.Run(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return errors.Wrap(err, "run failed")
			}

			if viper.GetBool("json") {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.FinalAnswer)
			return nil
		},
	}

	cmd.Flags().String("mode", string(agent.DefaultMode), "agent mode ("+modeList()+")")
	cmd.Flags().Bool("verbose", false, "print each step to stderr")
	cmd.Flags().Bool("json", false, "print the full run result as JSON")
	return cmd
}

func modeList() string {
	modes := agent.Modes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
