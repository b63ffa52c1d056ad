package config

// defaultValues returns the default configuration as viper keys.
func defaultValues() map[string]any {
	return map[string]any{
		"server.host": "127.0.0.1",
		"server.port": "8080",

		"gateway.host":                "127.0.0.1",
		"gateway.port":                "8081",
		"gateway.ask_timeout_seconds": 60,

		"catalog.path": "data/catalog.db",

		"storage.endpoint":   "s3.amazonaws.com",
		"storage.access_key": "${S3_ACCESS_KEY}",
		"storage.secret_key": "${S3_SECRET_KEY}",
		"storage.bucket":     "islamic-library",
		"storage.use_ssl":    true,

		"postgres.dsn": "postgres://localhost:5432/islamic_library",

		"vector.dsn":        "postgres://localhost:5432/islamic_library",
		"vector.collection": "islamic_library",
		"vector.dim":        768,
		"vector.partition":  "_default",
		"vector.batch_size": 12000,

		"extractor.script":          "scripts/export_book.sh",
		"extractor.timeout_seconds": 3600,

		"embedding.backend":          "remote",
		"embedding.remote_url":       "http://localhost:8000/embed",
		"embedding.api_key":          "${EMBEDDING_API_KEY}",
		"embedding.batch_size":       100,
		"embedding.timeout_seconds":  300,
		"embedding.local_batch_size": 1000,

		"jobs.workers":    3,
		"jobs.queue_size": 1024,

		"llm.api_key":         "${OPENAI_API_KEY}",
		"llm.base_url":        "",
		"llm.model":           "gpt-4o-mini",
		"llm.timeout_seconds": 60,

		"chunker.max_tokens":     7500,
		"chunker.lookback_chars": 50000,
	}
}

// DefaultConfig returns a Config populated with the built-in defaults only.
// Used by tests and by components constructed outside a Manager.
func DefaultConfig() *Config {
	return &Config{
		Server:  ServerConfig{Host: "127.0.0.1", Port: "8080"},
		Gateway: GatewayConfig{Host: "127.0.0.1", Port: "8081", AskTimeoutSeconds: 60},
		Catalog: CatalogConfig{Path: "data/catalog.db"},
		Storage: StorageConfig{
			Endpoint: "s3.amazonaws.com",
			Bucket:   "islamic-library",
			UseSSL:   true,
		},
		Postgres: PostgresConfig{DSN: "postgres://localhost:5432/islamic_library"},
		Vector: VectorConfig{
			DSN:        "postgres://localhost:5432/islamic_library",
			Collection: "islamic_library",
			Dim:        768,
			Partition:  "_default",
			BatchSize:  12000,
		},
		Extractor: ExtractorConfig{Script: "scripts/export_book.sh", TimeoutSeconds: 3600},
		Embedding: EmbeddingConfig{
			Backend:        "remote",
			RemoteURL:      "http://localhost:8000/embed",
			BatchSize:      100,
			TimeoutSeconds: 300,
			LocalBatchSize: 1000,
		},
		Jobs:    JobsConfig{Workers: 3, QueueSize: 1024},
		LLM:     LLMConfig{Model: "gpt-4o-mini", TimeoutSeconds: 60},
		Chunker: ChunkerConfig{MaxTokens: 7500, LookbackChars: 50000},
	}
}
