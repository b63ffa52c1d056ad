// Package rewrite turns a raw user question into an optimized retrieval
// query with sub-queries and a category routing hint, using an external LLM.
package rewrite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	// DefaultTimeout bounds one rewrite request.
	DefaultTimeout = 30 * time.Second

	// MaxQueryLen is the longest accepted raw query.
	MaxQueryLen = 1000

	rewriteAttempts = 3
	rewriteDelay    = 4 * time.Second
	rewriteMaxDelay = 10 * time.Second
)

// Result is the rewriter's output. Categories hold persisted category names
// resolved from the model's higher-order picks.
type Result struct {
	OptimizedQuery string   `json:"optimized_query"`
	SubQueries     []string `json:"sub_queries"`
	Categories     []string `json:"categories"`
}

// higherOrderCategories maps the taxonomy the prompt enumerates to the
// category names persisted in the catalogue.
var higherOrderCategories = map[string][]string{
	"العقيدة":         {"العقيدة", "الفرق والردود"},
	"التفسير":         {"التفسير", "علوم القرآن"},
	"الحديث":          {"متون الحديث", "شروح الحديث", "علوم الحديث"},
	"الفقه":           {"الفقه الحنفي", "الفقه المالكي", "الفقه الشافعي", "الفقه الحنبلي", "الفقه العام"},
	"أصول الفقه":      {"أصول الفقه", "القواعد الفقهية"},
	"السيرة والتاريخ": {"السيرة النبوية", "التاريخ", "التراجم والطبقات"},
	"الأخلاق والسلوك": {"الرقائق والآداب", "التزكية"},
	"اللغة":           {"النحو والصرف", "البلاغة", "معاجم اللغة"},
}

// Rewriter calls the chat model and parses its JSON answer.
type Rewriter struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

// Config configures the rewriter.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// New creates a rewriter client.
func New(cfg Config) *Rewriter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Rewriter{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		logger: logger.With("component", "rewrite"),
	}
}

// Rewrite validates the query and asks the model for the optimized form.
// Retries up to 3 times with exponential backoff, then rethrows.
func (r *Rewriter) Rewrite(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if len([]rune(query)) > MaxQueryLen {
		return nil, fmt.Errorf("query exceeds %d characters", MaxQueryLen)
	}

	var out *Result
	err := retry.Do(
		func() error {
			res, err := r.once(ctx, query)
			if err != nil {
				return err
			}
			out = res
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(rewriteAttempts),
		retry.Delay(rewriteDelay),
		retry.MaxDelay(rewriteMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("query rewrite failed: %w", err)
	}
	return out, nil
}

func (r *Rewriter) once(ctx context.Context, query string) (*Result, error) {
	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt()),
			openai.UserMessage(query),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}

	parsed, err := parseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	parsed.Categories = ResolveCategories(parsed.Categories)
	r.logger.Debug("query rewritten", "sub_queries", len(parsed.SubQueries), "categories", len(parsed.Categories))
	return parsed, nil
}

// systemPrompt enumerates the higher-order taxonomy so the model picks from
// a closed set. The names are sorted so the prompt is stable across runs.
func systemPrompt() string {
	names := make([]string, 0, len(higherOrderCategories))
	for name := range higherOrderCategories {
		names = append(names, name)
	}
	sort.Strings(names)
	return "أنت مساعد بحث في مكتبة التراث الإسلامي. أعد صياغة سؤال المستخدم " +
		"لتحسين الاسترجاع الدلالي، وقسّمه إلى أسئلة فرعية عند الحاجة، واختر " +
		"التصنيفات الأنسب من القائمة التالية فقط: " + strings.Join(names, "، ") + ".\n" +
		`أجب بكائن JSON واحد بالمفاتيح: optimized_query, sub_queries, categories.`
}

// parseResponse reads the model's JSON, tolerating markdown code fences.
func parseResponse(content string) (*Result, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	var res Result
	if err := json.Unmarshal([]byte(content), &res); err != nil {
		return nil, fmt.Errorf("model returned malformed JSON: %w", err)
	}
	if res.OptimizedQuery == "" {
		return nil, fmt.Errorf("model returned no optimized_query")
	}
	return &res, nil
}

// ResolveCategories maps higher-order names to persisted category names.
// Unknown names are dropped; duplicates collapse while keeping order.
func ResolveCategories(higher []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, h := range higher {
		for _, name := range higherOrderCategories[strings.TrimSpace(h)] {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}
