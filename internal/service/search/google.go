package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// DefaultGoogleEndpoint is the Custom Search JSON API endpoint.
const DefaultGoogleEndpoint = "https://www.googleapis.com/customsearch/v1"

const (
	placeholderPrefix = "YOUR_"
	maxBodyBytes      = 2 << 20
	errorBodyPreview  = 512
)

// GoogleConfig 描述 Google Custom Search 的访问参数。
type GoogleConfig struct {
	APIKey   string
	EngineID string
	Endpoint string
	Timeout  time.Duration
}

// Configured 表示凭证是否已填写（占位符视为未配置）。
func (c GoogleConfig) Configured() bool {
	return isRealCredential(c.APIKey) && isRealCredential(c.EngineID)
}

func isRealCredential(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.HasPrefix(v, placeholderPrefix)
}

// GoogleRetriever 是基于 Custom Search API 的 eino Retriever 实现。
type GoogleRetriever struct {
	cfg    GoogleConfig
	client *http.Client
	logger *zap.Logger
}

var _ retriever.Retriever = (*GoogleRetriever)(nil)

// NewGoogleRetriever 创建检索器；client 为空时按配置的超时新建。
func NewGoogleRetriever(cfg GoogleConfig, client *http.Client, logger *zap.Logger) *GoogleRetriever {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultGoogleEndpoint
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleRetriever{cfg: cfg, client: client, logger: logger.Named("search.google")}
}

// Retrieve 执行一次搜索，结果按返回顺序转换为文档。
func (g *GoogleRetriever) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	if !g.cfg.Configured() {
		return nil, ErrNotConfigured
	}

	topK := MaxResults
	options := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)
	if options.TopK != nil && *options.TopK > 0 && *options.TopK < topK {
		topK = *options.TopK
	}

	u, err := url.Parse(g.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", g.cfg.APIKey)
	q.Set("cx", g.cfg.EngineID)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(topK))
	u.RawQuery = q.Encode()

	g.logger.Debug("searching",
		zap.String("key_prefix", maskKey(g.cfg.APIKey)),
		zap.String("engine_id", g.cfg.EngineID),
		zap.String("query", query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: preview(body)}
	}

	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedPayload
	}

	items := gjson.GetBytes(body, "items")
	if !items.Exists() {
		return nil, nil
	}
	if !items.IsArray() {
		return nil, fmt.Errorf("%w: items is %s", ErrMalformedPayload, items.Type)
	}

	entries := items.Array()
	docs := make([]*schema.Document, 0, min(len(entries), topK))
	for i, item := range entries {
		if len(docs) == topK {
			break
		}
		if !item.IsObject() {
			return nil, fmt.Errorf("%w: item %d is %s", ErrMalformedPayload, i, item.Type)
		}
		link := fieldOr(item, "link", DefaultLink)
		docs = append(docs, &schema.Document{
			ID:      link,
			Content: fieldOr(item, "snippet", DefaultSnippet),
			MetaData: map[string]any{
				MetaTitle:  fieldOr(item, "title", DefaultTitle),
				MetaLink:   link,
				MetaSource: "google_cse",
			},
		})
	}

	g.logger.Debug("search finished", zap.Int("results", len(docs)))
	return docs, nil
}

// fieldOr 仅在字段缺失时使用默认值，空字符串原样保留。
func fieldOr(item gjson.Result, key, def string) string {
	v := item.Get(key)
	if !v.Exists() {
		return def
	}
	return v.String()
}

func maskKey(key string) string {
	if len(key) <= 10 {
		return strings.Repeat("*", len(key))
	}
	return key[:10] + "..."
}

func preview(body []byte) string {
	if len(body) > errorBodyPreview {
		body = body[:errorBodyPreview]
	}
	return string(body)
}
