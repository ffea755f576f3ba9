package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/ragmesh"
)

func newIngestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Parse knowledge files into chunk records",
		Long: `Discovers files under [discovery] knowledge_roots, splits them into
heading-delimited chunks and writes the records to [docs] jsonl and/or sqlite.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			chunks, err := ragmesh.Ingest(cmd.Context(), a.cfg, a.options)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d chunks\n", len(chunks))
			return nil
		},
	}
}

func newBuildCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Ingest, embed and write the vector index with its manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := ragmesh.Build(cmd.Context(), a.cfg, a.options)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), report)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d chunks with %s (dim=%d, impl=%s)\n",
				report.Chunks, report.Manifest.EmbedderName, report.Manifest.EmbedderDim, report.Manifest.IndexImpl)
			fmt.Fprintf(cmd.OutOrStdout(), "manifest: %s\n", report.ManifestPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the build report as JSON")
	return cmd
}
