package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aosman25/islam-ai/internal/catalog"
	"github.com/aosman25/islam-ai/internal/chunker"
	"github.com/aosman25/islam-ai/internal/config"
	"github.com/aosman25/islam-ai/internal/embed"
	"github.com/aosman25/islam-ai/internal/export"
	"github.com/aosman25/islam-ai/internal/extractor"
	"github.com/aosman25/islam-ai/internal/jobs"
	"github.com/aosman25/islam-ai/internal/objstore"
	"github.com/aosman25/islam-ai/internal/relstore"
	"github.com/aosman25/islam-ai/internal/search"
	"github.com/aosman25/islam-ai/internal/server"
	"github.com/aosman25/islam-ai/internal/svcctx"
	"github.com/aosman25/islam-ai/internal/vecstore"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the export service",
	Long: `Start the export service HTTP server.

The server connects to the catalogue, the object store, Postgres and the
vector store at startup and runs the export worker pool.

Examples:
  islamlib serve                 # Start on default port 8080
  islamlib serve --port 3000     # Start on custom port
  islamlib serve --host 0.0.0.0  # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		configMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := configMgr.Get()

		cat, err := catalog.Open(cfg.Catalog.Path)
		if err != nil {
			return err
		}
		defer cat.Close()

		objects, err := objstore.New(objstore.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
			Logger:    logger,
		})
		if err != nil {
			return err
		}

		rel, err := relstore.New(ctx, cfg.Postgres.DSN, logger)
		if err != nil {
			return err
		}
		defer rel.Close()

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

		dense, batchSize, err := buildDenseEmbedder(cfg)
		if err != nil {
			return err
		}
		pipeline := embed.NewPipeline(dense, batchSize, logger)

		ext := extractor.New(cfg.Extractor.Script,
			time.Duration(cfg.Extractor.TimeoutSeconds)*time.Second, logger)
		ch := chunker.New(cfg.Chunker.MaxTokens, cfg.Chunker.LookbackChars, logger)

		orchestrator := export.New(ext, objects, rel, vec, ch, pipeline, cfg.Vector.Partition, logger)
		jobManager := jobs.NewManager(jobs.Config{
			Runner:    orchestrator,
			Workers:   cfg.Jobs.Workers,
			QueueSize: cfg.Jobs.QueueSize,
			Logger:    logger,
		})

		partitions, err := vec.Partitions(ctx)
		if err != nil {
			return err
		}
		searcher := search.New(vec, partitions, logger)

		host := serveHost
		if host == "" {
			host = cfg.Server.Host
		}
		port := servePort
		if port == "" {
			port = cfg.Server.Port
		}

		srv, err := server.New(server.Config{
			Host: host,
			Port: port,
			Services: &svcctx.Services{
				ConfigManager: configMgr,
				Catalog:       cat,
				Objects:       objects,
				Rel:           rel,
				Vec:           vec,
				Orchestrator:  orchestrator,
				JobManager:    jobManager,
				Searcher:      searcher,
				Logger:        logger,
			},
			Logger: logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

// buildDenseEmbedder picks the embedding back-end from config.
func buildDenseEmbedder(cfg *config.Config) (embed.DenseEmbedder, int, error) {
	switch cfg.Embedding.Backend {
	case "remote":
		if cfg.Embedding.RemoteURL == "" {
			return nil, 0, fmt.Errorf("embedding.remote_url is required for the remote backend")
		}
		e := embed.NewRemoteEmbedder(cfg.Embedding.RemoteURL, cfg.Embedding.APIKey,
			cfg.Vector.Dim, time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second)
		return e, cfg.Embedding.BatchSize, nil
	case "local", "":
		return embed.Local(cfg.Vector.Dim), cfg.Embedding.LocalBatchSize, nil
	default:
		return nil, 0, fmt.Errorf("unknown embedding backend %q", cfg.Embedding.Backend)
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default from config)")

	rootCmd.AddCommand(serveCmd)
}
