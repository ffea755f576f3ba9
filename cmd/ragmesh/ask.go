package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/ragmesh/agent"
	"github.com/hupe1980/ragmesh/gate"
)

func newAskCmd(a *app) *cobra.Command {
	var (
		profile  string
		maxSteps int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question with the tool-calling control loop",
		Long: `Runs the reasoning model against the retrieval tools until it returns a
final answer. With --profile the analysis profile is attached for the
decide_branch, extract_process and find_video_sink_dropped_frames tools.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			var subject *gate.Subject
			if profile != "" {
				if subject, err = gate.LoadSubject(profile); err != nil {
					return err
				}
			}
			loop, err := rt.Loop(func(o *agent.LoopOptions) {
				if maxSteps > 0 {
					o.MaxSteps = maxSteps
				}
				if subject != nil {
					o.Subject = subject
				}
			})
			if err != nil {
				return err
			}

			res, runErr := loop.Run(cmd.Context(), strings.Join(args, " "))
			if asJSON {
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				return runErr
			}
			if runErr != nil {
				return runErr
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Answer)
			if a.verbose {
				fmt.Fprintf(out, "\n(%d steps, seen: %s)\n", len(res.Steps), strings.Join(res.Seen, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "analysis profile JSON for domain tools")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "override the step limit")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the full run result as JSON")
	return cmd
}

func newGateCmd(a *app) *cobra.Command {
	var rulesFile string
	cmd := &cobra.Command{
		Use:   "gate [profile]",
		Short: "Run the base checks on a profile and pick a branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rulesFile == "" {
				rulesFile = a.cfg.Gate.RulesFile
			}
			var rules []gate.Rule
			if rulesFile != "" {
				var err error
				if rules, err = gate.LoadRules(rulesFile); err != nil {
					return err
				}
			}
			subject, err := gate.LoadSubject(args[0])
			if err != nil {
				return err
			}
			g := gate.New(rules, func(o *gate.Options) {
				o.SampleLimit = a.cfg.Gate.SampleLimit
				o.Logger = a.logger
			})
			decision, err := g.Decide(cmd.Context(), gate.NewSession(a.cfg.Gate.BudgetLimit), subject)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), decision)
		},
	}
	cmd.Flags().StringVar(&rulesFile, "rules", "", "rules file (default from config)")
	return cmd
}
