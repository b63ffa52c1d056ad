package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aosman25/islam-ai/internal/config"
	"github.com/aosman25/islam-ai/internal/gateway"
	"github.com/aosman25/islam-ai/internal/rewrite"
	"github.com/aosman25/islam-ai/internal/search"
	"github.com/aosman25/islam-ai/internal/vecstore"
)

var (
	gatewayHost string
	gatewayPort string
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the RAG gateway",
	Long: `Start the RAG gateway HTTP server.

The gateway rewrites incoming questions, embeds them, runs hybrid retrieval
against the vector store and answers from the retrieved passages.

Examples:
  islamlib gateway               # Start on default port 8081
  islamlib gateway --port 3001   # Start on custom port`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		configMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := configMgr.Get()

		vec, err := vecstore.New(ctx, vecstore.Config{
			DSN:        cfg.Vector.DSN,
			Collection: cfg.Vector.Collection,
			Dim:        cfg.Vector.Dim,
			BatchSize:  cfg.Vector.BatchSize,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		defer vec.Close()

		partitions, err := vec.Partitions(ctx)
		if err != nil {
			return err
		}
		searcher := search.New(vec, partitions, logger)

		dense, _, err := buildDenseEmbedder(cfg)
		if err != nil {
			return err
		}

		rewriter := rewrite.New(rewrite.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
			Logger:  logger,
		})
		answerer := gateway.NewLLMAnswerer(gateway.LLMConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: time.Duration(cfg.Gateway.AskTimeoutSeconds) * time.Second,
		})

		svc := gateway.NewService(rewriter, dense, searcher, answerer, logger)

		host := gatewayHost
		if host == "" {
			host = cfg.Gateway.Host
		}
		port := gatewayPort
		if port == "" {
			port = cfg.Gateway.Port
		}

		srv := gateway.NewServer(svc, gateway.ServerConfig{
			Host:       host,
			Port:       port,
			AskTimeout: time.Duration(cfg.Gateway.AskTimeoutSeconds) * time.Second,
			Logger:     logger,
		})

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	gatewayCmd.Flags().StringVar(&gatewayHost, "host", "", "Host to bind to (default from config)")
	gatewayCmd.Flags().StringVar(&gatewayPort, "port", "", "Port to listen on (default from config)")

	rootCmd.AddCommand(gatewayCmd)
}
