package endpoints

import (
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aosman25/islam-ai/internal/api"
	"github.com/aosman25/islam-ai/internal/catalog"
	"github.com/aosman25/islam-ai/internal/svcctx"
)

// BooksListResponse is a page of catalogue books with export flags.
type BooksListResponse struct {
	Books  []BookView `json:"books"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// BookView is one catalogue book annotated with its export state.
type BookView struct {
	catalog.Book
	Exported bool `json:"exported"`
}

// BooksListEndpoint handles GET /books with the full filter surface.
type BooksListEndpoint struct{}

func (e *BooksListEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/books", e.handler
}

func (e *BooksListEndpoint) RequiresInit() bool { return true }

func (e *BooksListEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.ServicesFrom(r.Context())

	filter := catalog.BookFilter{
		Name:       r.URL.Query().Get("name"),
		CategoryID: queryInt64Ptr(r, "category_id"),
		AuthorID:   queryInt64Ptr(r, "author_id"),
		Hidden:     queryBoolPtr(r, "hidden"),
		Printed:    queryBoolPtr(r, "printed"),
		HasToc:     queryBoolPtr(r, "has_toc"),
		Exported:   queryBoolPtr(r, "exported"),
	}
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	exported, err := svc.Rel.AllExportedBookIDs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	books, total, err := svc.Catalog.ListBooks(r.Context(), filter, exported, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]BookView, len(books))
	for i, b := range books {
		_, isExported := exported[b.ID]
		views[i] = BookView{Book: b, Exported: isExported}
	}
	writeJSON(w, http.StatusOK, BooksListResponse{Books: views, Total: total, Limit: limit, Offset: offset})
}

func (e *BooksListEndpoint) Command(getServerURL func() string) *cobra.Command {
	var name string
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "books",
		Short: "List catalogue books",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/books?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
			if name != "" {
				path += "&name=" + name
			}
			var resp BooksListResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "filter by name substring")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	return cmd
}
