package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/aosman25/islam-ai/internal/api"
	"github.com/aosman25/islam-ai/internal/svcctx"
)

// BooksGetEndpoint handles GET /books/{id}.
type BooksGetEndpoint struct{}

func (e *BooksGetEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/books/{id}", e.handler
}

func (e *BooksGetEndpoint) RequiresInit() bool { return true }

func (e *BooksGetEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.ServicesFrom(r.Context())

	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	book, err := svc.Catalog.GetBook(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	exported, err := svc.Rel.AllExportedBookIDs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_, isExported := exported[book.ID]

	writeJSON(w, http.StatusOK, BookView{Book: *book, Exported: isExported})
}

func (e *BooksGetEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "book <id>",
		Short: "Show one catalogue book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp BookView
			if err := client.Get(cmd.Context(), "/books/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
