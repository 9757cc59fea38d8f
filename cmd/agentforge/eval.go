package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/martinemde/agentforge/agent"
	"github.com/martinemde/agentforge/eval"
)

func newEvalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run the evaluation cases and write a scored report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.LocalFlags()); err != nil {
				return errors.Wrap(err, "bind flags")
			}

			cases := eval.DefaultCases()
			if path := viper.GetString("cases"); path != "" {
				loaded, err := eval.LoadCasesFile(path)
				if err != nil {
					return err
				}
				cases = loaded
			}
			cases = eval.Select(cases, viper.GetStringSlice("ids"))
			if len(cases) == 0 {
				return errors.New("no eval cases selected")
			}

			cfg, client, dispatcher, err := components()
			if err != nil {
				return err
			}
			defer client.Close()

			verbose := viper.GetBool("verbose")
			runner := &eval.Runner{
				NewAgent: func(c eval.Case) eval.TaskRunner {
					caseCfg := cfg
					caseCfg.Mode = c.Mode
					caseCfg.Verbose = verbose
					return agent.New(caseCfg, client, dispatcher, agent.WithVerboseOutput(os.Stderr))
				},
				Out: cmd.OutOrStdout(),
			}

			report, err := runner.Run(cmd.Context(), cases)
			if err != nil {
				return errors.Wrap(err, "eval interrupted")
			}
			path, err := eval.WriteReport(viper.GetString("out"), report, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringSlice("ids", nil, "only run these case ids")
	cmd.Flags().String("cases", "", "YAML file of cases (default: built-in cases)")
	cmd.Flags().String("out", "eval_results", "directory for the JSON report")
	cmd.Flags().Bool("verbose", false, "print each agent step to stderr")
	return cmd
}
