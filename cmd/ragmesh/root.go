package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hupe1980/ragmesh"
	"github.com/hupe1980/ragmesh/config"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/tracing"
)

// app carries state shared by all commands of one invocation.
type app struct {
	configPath string
	logLevel   string
	verbose    bool

	cfg    *config.Config
	logger *logging.RAGLogger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ragmesh",
		Short: "Retrieval, summarization and tool-driven answering over a markdown knowledge base",
		Long: `ragmesh ingests markdown knowledge files into heading-delimited chunks,
embeds them into a vector index guarded by a manifest, and serves retrieval
tools (vector_search, get_docs_by_id, context_summarize) to a reasoning model,
an HTTP API or MCP clients.

Configuration is read from ragmesh.toml (or --config) and RAGMESH_* variables.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default ./ragmesh.toml if present)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "trace events to the log")

	root.AddCommand(
		newIngestCmd(a),
		newBuildCmd(a),
		newSearchCmd(a),
		newDocsCmd(a),
		newSummarizeCmd(a),
		newAskCmd(a),
		newGateCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	a.logger = ragmesh.NewLogger(cfg.Log).WithComponent("cli").With("command", cmd.Name())
	return nil
}

// options returns the ambient options for Build and Open.
func (a *app) options(o *ragmesh.Options) {
	o.Logger = a.logger
	if a.verbose {
		o.Tracer = tracing.NewLogger(a.logger)
	}
}

func (a *app) open(cmd *cobra.Command) (*ragmesh.Runtime, error) {
	return ragmesh.Open(cmd.Context(), a.cfg, a.options)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
