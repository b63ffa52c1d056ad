// Package svcctx provides the service context for dependency injection via
// context. Separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/aosman25/islam-ai/internal/catalog"
	"github.com/aosman25/islam-ai/internal/config"
	"github.com/aosman25/islam-ai/internal/export"
	"github.com/aosman25/islam-ai/internal/jobs"
	"github.com/aosman25/islam-ai/internal/objstore"
	"github.com/aosman25/islam-ai/internal/relstore"
	"github.com/aosman25/islam-ai/internal/search"
	"github.com/aosman25/islam-ai/internal/vecstore"
)

// Services holds all core services that flow through context. Endpoints
// extract what they need via the individual extractors.
type Services struct {
	ConfigManager *config.Manager
	Catalog       *catalog.Store
	Objects       *objstore.Store
	Rel           *relstore.Store
	Vec           *vecstore.Store
	Orchestrator  *export.Orchestrator
	JobManager    *jobs.Manager
	Searcher      *search.Searcher
	Logger        *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// CatalogFrom extracts the catalogue store from context.
func CatalogFrom(ctx context.Context) *catalog.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Catalog
	}
	return nil
}

// ObjectsFrom extracts the object store from context.
func ObjectsFrom(ctx context.Context) *objstore.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Objects
	}
	return nil
}

// RelFrom extracts the relational store from context.
func RelFrom(ctx context.Context) *relstore.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Rel
	}
	return nil
}

// VecFrom extracts the vector store from context.
func VecFrom(ctx context.Context) *vecstore.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Vec
	}
	return nil
}

// OrchestratorFrom extracts the export orchestrator from context.
func OrchestratorFrom(ctx context.Context) *export.Orchestrator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Orchestrator
	}
	return nil
}

// JobManagerFrom extracts the job manager from context.
func JobManagerFrom(ctx context.Context) *jobs.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.JobManager
	}
	return nil
}

// SearcherFrom extracts the hybrid searcher from context.
func SearcherFrom(ctx context.Context) *search.Searcher {
	if s := ServicesFrom(ctx); s != nil {
		return s.Searcher
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// ConfigManagerFrom extracts the config manager from context.
func ConfigManagerFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigManager
	}
	return nil
}
