// Package search defines the text-search collaborator the responder delegates to
// and its Google Custom Search implementation.
package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/retriever"
)

// MaxResults is the most results a single search returns.
const MaxResults = 5

var (
	// ErrNoResults signals a successful call that found nothing.
	ErrNoResults = errors.New("search returned no results")
	// ErrNotConfigured signals missing or placeholder provider credentials.
	ErrNotConfigured = errors.New("search provider credentials not configured")
	// ErrMalformedPayload signals a response body that is not valid JSON or
	// whose items are not a list of objects.
	ErrMalformedPayload = errors.New("search provider returned malformed payload")
)

// StatusError reports a non-2xx response from the provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("search provider returned status %d", e.StatusCode)
}

// Result is one titled, linked snippet.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// Searcher is the abstract search capability used by the responder.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// SearcherFunc adapts a plain function to Searcher.
type SearcherFunc func(ctx context.Context, query string) ([]Result, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, query string) ([]Result, error) {
	return f(ctx, query)
}

// Values used for result fields the provider leaves out. A field that is
// present but empty is kept as is.
const (
	DefaultTitle   = "No title"
	DefaultSnippet = "No description available"
	DefaultLink    = "#"
)

// Document metadata keys shared by retrievers feeding FromRetriever.
const (
	MetaTitle  = "title"
	MetaLink   = "link"
	MetaSource = "source"
)

type retrieverSearcher struct {
	retriever retriever.Retriever
	topK      int
}

// FromRetriever exposes an eino retriever as a Searcher. Documents are mapped
// to results using the MetaTitle and MetaLink metadata and Content as snippet.
func FromRetriever(r retriever.Retriever, topK int) Searcher {
	if topK <= 0 || topK > MaxResults {
		topK = MaxResults
	}
	return &retrieverSearcher{retriever: r, topK: topK}
}

func (s *retrieverSearcher) Search(ctx context.Context, query string) ([]Result, error) {
	docs, err := s.retriever.Retrieve(ctx, query, retriever.WithTopK(s.topK))
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		title := metaOr(doc.MetaData, MetaTitle, DefaultTitle)
		link := metaOr(doc.MetaData, MetaLink, DefaultLink)
		results = append(results, Result{
			Title:   title,
			Snippet: doc.Content,
			Link:    link,
		})
		if len(results) == s.topK {
			break
		}
	}
	return results, nil
}

func metaOr(meta map[string]any, key, def string) string {
	v, ok := meta[key]
	if !ok {
		return def
	}
	s, _ := v.(string)
	return s
}
