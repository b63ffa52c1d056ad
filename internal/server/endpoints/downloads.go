package endpoints

import (
	"archive/zip"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aosman25/islam-ai/internal/api"
	"github.com/aosman25/islam-ai/internal/objstore"
	"github.com/aosman25/islam-ai/internal/svcctx"
)

// DownloadRawEndpoint handles GET /download/raw/{id}: streams the book's raw
// HTML files as a ZIP archive.
type DownloadRawEndpoint struct{}

func (e *DownloadRawEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/download/raw/{id}", e.handler
}

func (e *DownloadRawEndpoint) RequiresInit() bool { return true }

func (e *DownloadRawEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.ServicesFrom(r.Context())

	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	keys, err := svc.Objects.List(r.Context(), objstore.RawPrefix(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(keys) == 0 {
		writeError(w, http.StatusNotFound, "book "+strconv.FormatInt(id, 10)+" has no raw export")
		return
	}

	name := strconv.FormatInt(id, 10) + ".zip"
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(w)
	defer zw.Close()
	if err := writeBookZip(r, svc, zw, id, keys, ""); err != nil {
		// Headers are out; nothing left to do but log.
		svc.Logger.Error("raw archive stream failed", "book_id", id, "error", err)
	}
}

// writeBookZip appends one book's raw files to an open archive, each entry
// named by its object base name under the given directory prefix.
func writeBookZip(r *http.Request, svc *svcctx.Services, zw *zip.Writer, bookID int64, keys []string, dir string) error {
	for _, key := range keys {
		data, err := svc.Objects.Get(r.Context(), key)
		if err != nil {
			return err
		}
		base := key
		if i := strings.LastIndexByte(key, '/'); i >= 0 {
			base = key[i+1:]
		}
		f, err := zw.Create(dir + base)
		if err != nil {
			return err
		}
		if _, err := f.Write(data); err != nil {
			return err
		}
	}
	return nil
}

func (e *DownloadRawEndpoint) Command(getServerURL func() string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download-raw <id>",
		Short: "Download a book's raw HTML as a ZIP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = args[0] + ".zip"
			}
			client := api.NewClient(getServerURL())
			return client.Download(cmd.Context(), "/download/raw/"+args[0], out)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "destination file")
	return cmd
}

// DownloadMetadataEndpoint handles GET /download/metadata/{id}.
type DownloadMetadataEndpoint struct{}

func (e *DownloadMetadataEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/download/metadata/{id}", e.handler
}

func (e *DownloadMetadataEndpoint) RequiresInit() bool { return true }

func (e *DownloadMetadataEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	serveObject(w, r, "metadata", "application/json")
}

func (e *DownloadMetadataEndpoint) Command(getServerURL func() string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download-metadata <id>",
		Short: "Download a book's metadata JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = args[0] + ".json"
			}
			client := api.NewClient(getServerURL())
			return client.Download(cmd.Context(), "/download/metadata/"+args[0], out)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "destination file")
	return cmd
}

// DownloadEmbeddingsEndpoint handles GET /download/embeddings/{id}.
type DownloadEmbeddingsEndpoint struct{}

func (e *DownloadEmbeddingsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/download/embeddings/{id}", e.handler
}

func (e *DownloadEmbeddingsEndpoint) RequiresInit() bool { return true }

func (e *DownloadEmbeddingsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	serveObject(w, r, "embeddings", "application/x-ndjson")
}

func (e *DownloadEmbeddingsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download-embeddings <id>",
		Short: "Download a book's embeddings JSONL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = args[0] + ".jsonl"
			}
			client := api.NewClient(getServerURL())
			return client.Download(cmd.Context(), "/download/embeddings/"+args[0], out)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "destination file")
	return cmd
}

// serveObject streams a single exported artifact for the book in the path.
func serveObject(w http.ResponseWriter, r *http.Request, kind, contentType string) {
	svc := svcctx.ServicesFrom(r.Context())

	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	var key string
	switch kind {
	case "metadata":
		key = objstore.MetadataKey(id)
	case "embeddings":
		key = objstore.EmbeddingsKey(id)
	}

	data, err := svc.Objects.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, objstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book "+strconv.FormatInt(id, 10)+" has no "+kind)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// DownloadBooksEndpoint handles GET /download/books?ids=1,2,3: one ZIP with a
// directory per book holding its raw files.
type DownloadBooksEndpoint struct{}

func (e *DownloadBooksEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/download/books", e.handler
}

func (e *DownloadBooksEndpoint) RequiresInit() bool { return true }

func (e *DownloadBooksEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.ServicesFrom(r.Context())

	raw := r.URL.Query().Get("ids")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "ids query parameter is required")
		return
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		v, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid book id "+part)
			return
		}
		ids = append(ids, v)
	}

	// Resolve every book's file list up front so a miss can still 404.
	perBook := make(map[int64][]string, len(ids))
	for _, id := range ids {
		keys, err := svc.Objects.List(r.Context(), objstore.RawPrefix(id))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if len(keys) == 0 {
			writeError(w, http.StatusNotFound, "book "+strconv.FormatInt(id, 10)+" has no raw export")
			return
		}
		perBook[id] = keys
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="books.zip"`)
	w.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(w)
	defer zw.Close()
	for _, id := range ids {
		dir := strconv.FormatInt(id, 10) + "/"
		if err := writeBookZip(r, svc, zw, id, perBook[id], dir); err != nil {
			svc.Logger.Error("bulk archive stream failed", "book_id", id, "error", err)
			return
		}
	}
}

func (e *DownloadBooksEndpoint) Command(getServerURL func() string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download-books <id>...",
		Short: "Download several books' raw HTML as one ZIP",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = "books.zip"
			}
			client := api.NewClient(getServerURL())
			return client.Download(cmd.Context(), "/download/books?ids="+strings.Join(args, ","), out)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "destination file")
	return cmd
}
