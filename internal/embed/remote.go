package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	// DefaultRemoteBatch caps texts per request to the inference endpoint.
	DefaultRemoteBatch = 100

	// DefaultRemoteTimeout bounds one inference request.
	DefaultRemoteTimeout = 300 * time.Second

	remoteAttempts   = 3
	remoteRetryDelay = 5 * time.Second
)

// RemoteEmbedder calls an external dense inference endpoint.
type RemoteEmbedder struct {
	URL    string
	APIKey string

	dim    int
	client *http.Client
}

// NewRemoteEmbedder builds a client for the given endpoint and dimension.
func NewRemoteEmbedder(url, apiKey string, dim int, timeout time.Duration) *RemoteEmbedder {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &RemoteEmbedder{
		URL:    url,
		APIKey: apiKey,
		dim:    dim,
		client: &http.Client{Timeout: timeout},
	}
}

// Dim returns the configured vector dimension.
func (e *RemoteEmbedder) Dim() int { return e.dim }

type embedRequest struct {
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// statusError marks HTTP-level failures so the retry policy can tell them
// apart from transport errors.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("embedding endpoint returned %d: %s", e.code, e.body)
}

// Embed posts one batch of texts and returns their vectors. Transport
// timeouts and connection errors retry with exponential backoff; HTTP 4xx
// responses fail immediately.
func (e *RemoteEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > DefaultRemoteBatch {
		return nil, fmt.Errorf("batch of %d exceeds the %d-text request limit", len(texts), DefaultRemoteBatch)
	}

	payload, err := json.Marshal(embedRequest{Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	var out embedResponse
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(payload))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			if e.APIKey != "" {
				req.Header.Set("Authorization", "Bearer "+e.APIKey)
			}

			resp, err := e.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return &statusError{code: resp.StatusCode, body: string(body)}
			}
			return json.NewDecoder(resp.Body).Decode(&out)
		},
		retry.Context(ctx),
		retry.Attempts(remoteAttempts),
		retry.Delay(remoteRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
	)
	if err != nil {
		return nil, err
	}

	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("endpoint returned %d embeddings for %d texts", len(out.Embeddings), len(texts))
	}
	for i, v := range out.Embeddings {
		if len(v) != e.dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), e.dim)
		}
	}
	return out.Embeddings, nil
}

// isTransient reports whether the error is a timeout or connection failure.
// Server responses, malformed payloads and cancellations do not retry.
func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}
