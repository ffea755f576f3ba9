package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/tool"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		k       int
		mode    string
		filters map[string]string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode != "" {
				a.cfg.Search.Mode = mode
			}
			rt, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			out, err := rt.Router.Search(cmd.Context(), tool.VectorSearchRequest{
				Query:            args[0],
				K:                k,
				Filters:          filters,
				SectionHardLimit: a.cfg.Search.SectionHardLimit,
			})
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), out)
			}
			printHits(cmd, out.Hits)
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of hits (default from config)")
	cmd.Flags().StringVar(&mode, "mode", "", "override search mode (vector, keyword, bleve)")
	cmd.Flags().StringToStringVar(&filters, "filter", nil, "metadata equality filter key=value (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func printHits(cmd *cobra.Command, hits []core.SearchHit) {
	if len(hits) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
		return
	}
	for i, h := range hits {
		fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %s (%.3f)\n", i+1, h.ID, h.Score)
		if s, ok := h.Meta["section"].(string); ok && s != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "      Section: %s\n", s)
		}
		if snippet := oneLine(h.Text, 160); snippet != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "      %s\n", snippet)
		}
	}
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func newDocsCmd(a *app) *cobra.Command {
	var (
		mode   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "docs [id...]",
		Short: "Resolve chunk or parent ids to documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.Search.Mode = "keyword"
			rt, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			out, err := rt.Router.Docs(tool.GetDocsRequest{IDs: args, Return: mode})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), out)
			}
			for _, d := range out.Docs {
				fmt.Fprintf(cmd.OutOrStdout(), "== %s\n%s\n\n", d.ID, d.Text)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "return", "r", "chunk", "chunk, parent or both")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output documents as JSON")
	return cmd
}

func newSummarizeCmd(a *app) *cobra.Command {
	var (
		k      int
		style  string
		budget int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "summarize [query]",
		Short: "Search and summarize the hits with citations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			found, err := rt.Router.Search(cmd.Context(), tool.VectorSearchRequest{
				Query:            args[0],
				K:                k,
				SectionHardLimit: a.cfg.Search.SectionHardLimit,
			})
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if budget < 0 {
				budget = a.cfg.Summarizer.TokenBudget
			}
			if style == "" {
				style = a.cfg.Summarizer.Style
			}
			out, err := rt.Router.Summarize(cmd.Context(), tool.SummarizeRequest{Hits: found.Hits, Style: style, TokenBudget: budget})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), out)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Summary)
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of hits (default from config)")
	cmd.Flags().StringVar(&style, "style", "", "bullet, abstract or qa (default from config)")
	cmd.Flags().IntVar(&budget, "budget", -1, "token budget (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output summary and citations as JSON")
	return cmd
}
