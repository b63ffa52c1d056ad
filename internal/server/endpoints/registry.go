package endpoints

import (
	"github.com/aosman25/islam-ai/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},

		// Catalogue endpoints
		&BooksListEndpoint{},
		&BooksGetEndpoint{},

		// Export endpoints
		&ExportBookEndpoint{},
		&ExportBooksEndpoint{},

		// Job endpoints
		&JobsListEndpoint{},
		&JobGetEndpoint{},
		&DLQListEndpoint{},
		&DLQRetryEndpoint{},
		&DLQClearEndpoint{},

		// Deletion endpoints
		&BookDeleteEndpoint{},
		&BooksDeleteEndpoint{},

		// Download endpoints
		&DownloadRawEndpoint{},
		&DownloadMetadataEndpoint{},
		&DownloadEmbeddingsEndpoint{},
		&DownloadBooksEndpoint{},
	}
}
