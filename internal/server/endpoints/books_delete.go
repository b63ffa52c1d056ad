package endpoints

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aosman25/islam-ai/internal/api"
	"github.com/aosman25/islam-ai/internal/svcctx"
)

// DeleteBookResponse reports one book's removal from all stores.
type DeleteBookResponse struct {
	BookID  int64  `json:"book_id"`
	Deleted bool   `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

// DeleteBooksRequest is the bulk delete body.
type DeleteBooksRequest struct {
	BookIDs []int64 `json:"book_ids"`
}

// DeleteBooksResponse is the bulk delete result.
type DeleteBooksResponse struct {
	Results []DeleteBookResponse `json:"results"`
}

// BookDeleteEndpoint handles DELETE /books/{id}: removes the book's exported
// artifacts from object, relational and vector storage.
type BookDeleteEndpoint struct{}

func (e *BookDeleteEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/books/{id}", e.handler
}

func (e *BookDeleteEndpoint) RequiresInit() bool { return true }

func (e *BookDeleteEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.ServicesFrom(r.Context())

	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	existed, err := svc.Orchestrator.DeleteBook(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !existed {
		writeError(w, http.StatusNotFound, "book "+strconv.FormatInt(id, 10)+" has no exported data")
		return
	}
	writeJSON(w, http.StatusOK, DeleteBookResponse{BookID: id, Deleted: true})
}

func (e *BookDeleteEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-book <id>",
		Short: "Delete a book's exported data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp DeleteBookResponse
			if err := client.Delete(cmd.Context(), "/books/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// BooksDeleteEndpoint handles DELETE /books: bulk removal, one result per
// requested book. Per-book failures do not abort the rest.
type BooksDeleteEndpoint struct{}

func (e *BooksDeleteEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/books", e.handler
}

func (e *BooksDeleteEndpoint) RequiresInit() bool { return true }

func (e *BooksDeleteEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.ServicesFrom(r.Context())

	var req DeleteBooksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.BookIDs) == 0 {
		writeError(w, http.StatusBadRequest, "book_ids must not be empty")
		return
	}

	results := make([]DeleteBookResponse, 0, len(req.BookIDs))
	for _, id := range req.BookIDs {
		res := DeleteBookResponse{BookID: id}
		existed, err := svc.Orchestrator.DeleteBook(r.Context(), id)
		switch {
		case err != nil:
			res.Error = err.Error()
		case existed:
			res.Deleted = true
		}
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, DeleteBooksResponse{Results: results})
}

func (e *BooksDeleteEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-books <id>...",
		Short: "Delete exported data for several books",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, len(args))
			for i, a := range args {
				v, err := strconv.ParseInt(a, 10, 64)
				if err != nil {
					return err
				}
				ids[i] = v
			}
			client := api.NewClient(getServerURL())
			var resp DeleteBooksResponse
			if err := client.DeleteWithBody(cmd.Context(), "/books", DeleteBooksRequest{BookIDs: ids}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
