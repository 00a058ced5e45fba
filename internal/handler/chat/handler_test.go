package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/buddyhq/buddy/internal/service/chat"
	"github.com/buddyhq/buddy/internal/service/responder"
	"github.com/buddyhq/buddy/internal/service/search"
	"github.com/buddyhq/buddy/internal/service/session"
)

func setupRouter(searcher search.Searcher) (*chi.Mux, *chat.Service) {
	r := responder.New(responder.Options{
		Searcher: searcher,
		Session:  session.NewStore(),
		Picker:   responder.PickerFunc(func(int) int { return 0 }),
		Logger:   zap.NewNop(),
	})
	chatSvc := chat.NewService(r)
	handler := New(chatSvc, zap.NewNop())

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router, chatSvc
}

func noResults() search.Searcher {
	return search.SearcherFunc(func(context.Context, string) ([]search.Result, error) {
		return nil, search.ErrNoResults
	})
}

func postChat(t *testing.T, r http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var decoded map[string]any
	if resp.Code == http.StatusOK {
		if err := json.Unmarshal(resp.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp, decoded
}

func TestChatGreetingHasNullState(t *testing.T) {
	r, _ := setupRouter(noResults())

	resp, body := postChat(t, r, `{"message":"Hello BUDDY"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if body["response"] != responder.Greetings[0] {
		t.Fatalf("unexpected response %q", body["response"])
	}
	if v, ok := body["platform"]; !ok || v != nil {
		t.Fatalf("expected platform null, got %v", v)
	}
	if v, ok := body["focus_area"]; !ok || v != nil {
		t.Fatalf("expected focus_area null, got %v", v)
	}
}

func TestChatEchoesStickySession(t *testing.T) {
	r, _ := setupRouter(noResults())

	postChat(t, r, `{"message":"I need help with Instagram"}`)
	_, body := postChat(t, r, `{"message":"I want content tips"}`)

	if body["platform"] != "instagram" || body["focus_area"] != "content" {
		t.Fatalf("unexpected state %v", body)
	}
}

func TestChatDelegatesToSearch(t *testing.T) {
	var gotQuery string
	r, _ := setupRouter(search.SearcherFunc(func(_ context.Context, q string) ([]search.Result, error) {
		gotQuery = q
		return []search.Result{{Title: "Reels guide", Snippet: "Post daily", Link: "https://example.com"}}, nil
	}))

	_, body := postChat(t, r, `{"message":"Instagram reels strategy"}`)

	if gotQuery != "instagram reels strategy social media tips best practices" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	text, _ := body["response"].(string)
	if !strings.Contains(text, "1. Reels guide") || !strings.Contains(text, "Source: https://example.com") {
		t.Fatalf("unexpected response %q", text)
	}
}

func TestChatEmptyMessageIsAnswered(t *testing.T) {
	r, _ := setupRouter(noResults())

	resp, body := postChat(t, r, `{"message":""}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if body["response"] == "" {
		t.Fatalf("expected a fallback response")
	}
}

func TestChatMalformedBody(t *testing.T) {
	r, _ := setupRouter(noResults())

	resp, _ := postChat(t, r, `{"message":`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"error"`) {
		t.Fatalf("expected error body, got %s", resp.Body.String())
	}
}

func TestVoiceStub(t *testing.T) {
	r, _ := setupRouter(noResults())

	req := httptest.NewRequest(http.MethodPost, "/voice", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if strings.TrimSpace(resp.Body.String()) != `{"status":"not implemented yet"}` {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestSessionAndHistory(t *testing.T) {
	r, _ := setupRouter(noResults())

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/session", nil))
	if !strings.Contains(resp.Body.String(), `"last_interaction":null`) {
		t.Fatalf("fresh session should have no interaction: %s", resp.Body.String())
	}

	postChat(t, r, `{"message":"how do I grow on youtube"}`)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/session", nil))
	var state map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if state["platform"] != "youtube" || state["last_interaction"] == nil {
		t.Fatalf("unexpected session %v", state)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/history", nil))
	var history struct {
		Count    int `json:"count"`
		Messages []struct {
			Sender  string `json:"sender"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if history.Count != 2 || history.Messages[0].Content != "how do I grow on youtube" {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestWebSocketChatRoundTrip(t *testing.T) {
	// 连接关闭后读循环与 ping 协程都应退出
	defer goleak.VerifyNone(t)

	r, _ := setupRouter(noResults())
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"message": "Facebook ads"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var reply ChatResponse
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Platform == nil || *reply.Platform != "facebook" {
		t.Fatalf("unexpected platform %v", reply.Platform)
	}
	if reply.FocusArea == nil || *reply.FocusArea != "marketing" {
		t.Fatalf("unexpected focus area %v", reply.FocusArea)
	}
	if !strings.Contains(reply.Response, "marketing on facebook") {
		t.Fatalf("unexpected response %q", reply.Response)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	var failure map[string]string
	if err := conn.ReadJSON(&failure); err != nil {
		t.Fatalf("read: %v", err)
	}
	if failure["error"] != "invalid message" {
		t.Fatalf("unexpected error frame %v", failure)
	}
}
