// Package responder turns one user utterance into BUDDY's reply.
package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/buddyhq/buddy/internal/analysis/intent"
	"github.com/buddyhq/buddy/internal/model/chat"
	"github.com/buddyhq/buddy/internal/service/search"
	"github.com/buddyhq/buddy/internal/service/session"
)

// Kind is the branch a reply was produced by.
type Kind string

const (
	KindGreeting Kind = "greeting"
	KindFarewell Kind = "farewell"
	KindResults  Kind = "results"
	KindFallback Kind = "fallback"
)

// Options wires the responder's collaborators. Zero fields get defaults.
type Options struct {
	Searcher search.Searcher
	Session  *session.Store
	Picker   Picker
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Responder classifies input, updates the session and builds a reply.
type Responder struct {
	searcher search.Searcher
	session  *session.Store
	picker   Picker
	clock    func() time.Time
	logger   *zap.Logger
}

// New creates a Responder.
func New(opts Options) *Responder {
	r := &Responder{
		searcher: opts.Searcher,
		session:  opts.Session,
		picker:   opts.Picker,
		clock:    opts.Clock,
		logger:   opts.Logger,
	}
	if r.session == nil {
		r.session = session.NewStore()
	}
	if r.picker == nil {
		r.picker = newDefaultPicker()
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.logger = r.logger.Named("responder")
	return r
}

// Session returns the session the responder updates.
func (r *Responder) Session() *session.Store {
	return r.session
}

// Answer is one reply together with the session state its turn produced.
type Answer struct {
	Text  string
	Kind  Kind
	State chat.SessionState
}

// Respond produces the reply for input.
func (r *Responder) Respond(ctx context.Context, input string) string {
	return r.Answer(ctx, input).Text
}

// RespondKind is Respond plus the branch that produced the reply.
func (r *Responder) RespondKind(ctx context.Context, input string) (string, Kind) {
	a := r.Answer(ctx, input)
	return a.Text, a.Kind
}

// Answer runs one turn. The returned State is the session as this turn's
// update left it, even if other turns update the session afterwards.
func (r *Responder) Answer(ctx context.Context, input string) Answer {
	query := strings.ToLower(input)

	result := intent.Classify(query)
	state := r.session.Update(result, r.clock())

	switch {
	case result.IsGreeting:
		return Answer{Text: r.Greeting(), Kind: KindGreeting, State: state}
	case result.IsFarewell:
		return Answer{Text: r.Farewell(), Kind: KindFarewell, State: state}
	}

	results, err := r.search(ctx, query)
	if err != nil {
		r.logger.Warn("search failed, using fallback",
			zap.String("query", query),
			zap.String("kind", failureKind(err)),
			zap.Error(err))
		return Answer{Text: FallbackMessage(query), Kind: KindFallback, State: state}
	}

	return Answer{Text: FormatResults(query, results), Kind: KindResults, State: state}
}

// Greeting returns one of the canned greetings.
func (r *Responder) Greeting() string {
	return Greetings[r.picker.Pick(len(Greetings))]
}

// Farewell returns one of the canned farewells.
func (r *Responder) Farewell() string {
	return Farewells[r.picker.Pick(len(Farewells))]
}

func (r *Responder) search(ctx context.Context, query string) ([]search.Result, error) {
	if r.searcher == nil {
		return nil, search.ErrNotConfigured
	}
	results, err := r.searcher.Search(ctx, query+searchSuffix)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, search.ErrNoResults
	}
	return results, nil
}

// FormatResults renders up to search.MaxResults entries for query.
func FormatResults(query string, results []search.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, resultsHeader, query)
	for i, res := range results {
		if i == search.MaxResults {
			break
		}
		fmt.Fprintf(&b, resultEntry, i+1, res.Title, res.Snippet, res.Link)
	}
	b.WriteString(closingPrompt)
	return b.String()
}

// FallbackMessage picks the apology for a failed search. Platform and focus
// area are re-detected from the query text, not read from the session.
func FallbackMessage(query string) string {
	platform := intent.DetectPlatform(query)
	focus := intent.DetectFocusArea(query)

	switch {
	case platform != intent.NoPlatform && focus != intent.NoFocusArea:
		return fmt.Sprintf(fallbackPlatformAndFocus, focus, platform)
	case platform != intent.NoPlatform:
		return fmt.Sprintf(fallbackPlatformOnly, platform)
	default:
		return fallbackGeneric
	}
}

func failureKind(err error) string {
	var statusErr *search.StatusError
	switch {
	case errors.Is(err, search.ErrNoResults):
		return "no_results"
	case errors.Is(err, search.ErrNotConfigured):
		return "not_configured"
	case errors.As(err, &statusErr):
		return "transport"
	default:
		return "exception"
	}
}
