package chat_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buddyhq/buddy/internal/service/chat"
	"github.com/buddyhq/buddy/internal/service/responder"
	"github.com/buddyhq/buddy/internal/service/search"
	"github.com/buddyhq/buddy/internal/service/session"
)

type recorder struct {
	lines []string
}

func (r *recorder) Speak(_ context.Context, text string) string {
	r.lines = append(r.lines, text)
	return ""
}

func scripted(lines ...string) chat.Input {
	return chat.InputFunc(func(context.Context) (string, error) {
		if len(lines) == 0 {
			return "", io.EOF
		}
		next := lines[0]
		lines = lines[1:]
		return next, nil
	})
}

func newConversationService() *chat.Service {
	r := responder.New(responder.Options{
		Searcher: search.SearcherFunc(func(context.Context, string) ([]search.Result, error) {
			return nil, search.ErrNoResults
		}),
		Session: session.NewStore(),
		Picker:  responder.PickerFunc(func(int) int { return 0 }),
	})
	return chat.NewService(r)
}

func TestConversationExitWordEndsImmediately(t *testing.T) {
	svc := newConversationService()
	out := &recorder{}

	require.NoError(t, svc.RunConversation(context.Background(), scripted("Quit"), out))

	assert.Equal(t, []string{responder.Greetings[0], responder.Farewells[0]}, out.lines)
}

func TestConversationAsksToContinue(t *testing.T) {
	svc := newConversationService()
	out := &recorder{}

	err := svc.RunConversation(context.Background(), scripted("instagram marketing", "yes", "youtube", "No."), out)
	require.NoError(t, err)

	require.Len(t, out.lines, 6)
	assert.Equal(t, responder.Greetings[0], out.lines[0])
	assert.Contains(t, out.lines[1], "marketing on instagram")
	assert.Equal(t, responder.ContinuePrompt, out.lines[2])
	assert.Contains(t, out.lines[3], "about youtube")
	assert.Equal(t, responder.ContinuePrompt, out.lines[4])
	assert.Equal(t, responder.Farewells[0], out.lines[5])

	// 继续确认不作为提问处理
	assert.Len(t, svc.LoadTranscript(context.Background()), 6)
}

func TestConversationEndOfInputSaysGoodbye(t *testing.T) {
	svc := newConversationService()
	out := &recorder{}

	require.NoError(t, svc.RunConversation(context.Background(), scripted("facebook"), out))
	assert.Equal(t, responder.Farewells[0], out.lines[len(out.lines)-1])
}

func TestConversationPropagatesInputErrors(t *testing.T) {
	svc := newConversationService()
	boom := errors.New("stdin closed unexpectedly")

	err := svc.RunConversation(context.Background(), chat.InputFunc(func(context.Context) (string, error) {
		return "", boom
	}), &recorder{})

	assert.ErrorIs(t, err, boom)
}
