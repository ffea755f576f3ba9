package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/ragmesh"
	"github.com/hupe1980/ragmesh/api"
	"github.com/hupe1980/ragmesh/mcpserver"
	"github.com/hupe1980/ragmesh/tool"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tools and the ask endpoint over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			rt, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			var asker api.Asker
			if rt.Model != nil {
				loop, err := rt.Loop()
				if err != nil {
					return err
				}
				asker = loop
			} else {
				a.logger.Warn("serve.no_model", "detail", "/v1/ask is disabled")
			}

			handler := api.NewServer(rt.Router, asker, func(o *api.Options) {
				o.APIKey = a.cfg.Server.APIKey
				o.RequestContext = rt.WithSession
				o.Logger = a.logger
			})
			return listen(cmd.Context(), a, addr, handler)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func listen(ctx context.Context, a *app, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serve.listen", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("serve.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newMCPCmd(a *app) *cobra.Command {
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Expose the retrieval tools to MCP clients",
		Long: `Serves vector_search, get_docs_by_id and context_summarize over the Model
Context Protocol. Uses stdio unless --http is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			srv, err := mcpserver.NewServer(rt.Router, func(o *mcpserver.Options) {
				o.Version = ragmesh.Version
				o.Defaults = tool.Defaults{
					K:                a.cfg.Search.DefaultK,
					SectionHardLimit: a.cfg.Search.SectionHardLimit,
					Style:            a.cfg.Summarizer.Style,
					TokenBudget:      a.cfg.Summarizer.TokenBudget,
				}
				o.Logger = a.logger
			})
			if err != nil {
				return err
			}
			if httpAddr != "" {
				return srv.RunHTTP(cmd.Context(), httpAddr)
			}
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	return cmd
}
