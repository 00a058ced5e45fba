package chat_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/buddyhq/buddy/internal/analysis/intent"
	modelchat "github.com/buddyhq/buddy/internal/model/chat"
	chat "github.com/buddyhq/buddy/internal/service/chat"
	"github.com/buddyhq/buddy/internal/service/responder"
	"github.com/buddyhq/buddy/internal/service/search"
	"github.com/buddyhq/buddy/internal/service/session"
)

func newService() *chat.Service {
	searcher := search.SearcherFunc(func(context.Context, string) ([]search.Result, error) {
		return []search.Result{{Title: "t", Snippet: "s", Link: "l"}}, nil
	})
	return chat.NewService(responder.New(responder.Options{
		Searcher: searcher,
		Picker:   responder.PickerFunc(func(int) int { return 0 }),
	}))
}

func TestServiceSendRecordsTurn(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	reply := svc.Send(ctx, "Instagram post ideas")
	if reply.Kind != responder.KindResults {
		t.Fatalf("expected results reply, got %s", reply.Kind)
	}
	if reply.State.Platform != intent.Instagram || reply.State.FocusArea != intent.Content {
		t.Fatalf("unexpected state: %+v", reply.State)
	}

	transcript := svc.LoadTranscript(ctx)
	if len(transcript) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(transcript))
	}
	if transcript[0].Sender != modelchat.SenderUser || transcript[0].Content != "Instagram post ideas" {
		t.Fatalf("unexpected user message: %+v", transcript[0])
	}
	if transcript[1].Sender != modelchat.SenderAssistant || transcript[1].Content != reply.Response {
		t.Fatalf("unexpected assistant message: %+v", transcript[1])
	}
	if transcript[0].ID == "" || transcript[0].ID == transcript[1].ID {
		t.Fatalf("expected distinct message ids")
	}
}

// A turn that lands while this one is searching must not leak into this
// turn's reply state.
func TestServiceSendReportsOwnTurnState(t *testing.T) {
	store := session.NewStore()
	searcher := search.SearcherFunc(func(ctx context.Context, _ string) ([]search.Result, error) {
		store.Update(intent.Classify("facebook community"), time.Now())
		return []search.Result{{Title: "t", Snippet: "s", Link: "l"}}, nil
	})
	svc := chat.NewService(responder.New(responder.Options{
		Searcher: searcher,
		Session:  store,
		Picker:   responder.PickerFunc(func(int) int { return 0 }),
	}))

	reply := svc.Send(context.Background(), "instagram marketing")
	if reply.State.Platform != intent.Instagram || reply.State.FocusArea != intent.Marketing {
		t.Fatalf("reply state should be this turn's, got %+v", reply.State)
	}
	if transcript := svc.LoadTranscript(context.Background()); transcript[0].Platform != intent.Instagram {
		t.Fatalf("user message tagged with %q", transcript[0].Platform)
	}
	if got := svc.State(); got.Platform != intent.Facebook {
		t.Fatalf("later update should win in the session, got %q", got.Platform)
	}
}

func TestServiceGreetingDoesNotTouchSession(t *testing.T) {
	svc := newService()

	if got := svc.Greeting(); got != responder.Greetings[0] {
		t.Fatalf("unexpected greeting %q", got)
	}
	if state := svc.State(); state.LastInteraction != nil {
		t.Fatalf("opening greeting should not count as an interaction")
	}
}

func TestServiceTranscriptIsBounded(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		svc.Send(ctx, fmt.Sprintf("question %d", i))
	}

	transcript := svc.LoadTranscript(ctx)
	if len(transcript) != 200 {
		t.Fatalf("expected transcript capped at 200, got %d", len(transcript))
	}
	if last := transcript[len(transcript)-2]; last.Content != "question 149" {
		t.Fatalf("expected newest turn kept, got %q", last.Content)
	}
}
