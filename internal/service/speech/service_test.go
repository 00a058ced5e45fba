package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	speechmodel "github.com/buddyhq/buddy/internal/model/speech"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() *speechmodel.Config {
	return &speechmodel.Config{
		AppID:       "app",
		AccessToken: "token",
		ASRLanguage: "en-US",
		TTSVoice:    "en_female_amy_jupiter_bigtts",
		Timeout:     5 * time.Second,
	}
}

// fakeServer 启动一个按 handle 逻辑应答的 WebSocket 服务。
func fakeServer(t *testing.T, handle func(t *testing.T, r *http.Request, conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handle(t, r, conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func mustRead(t *testing.T, conn *websocket.Conn) *frame {
	t.Helper()
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	f, err := unmarshalFrame(data)
	require.NoError(t, err)
	f.Payload, err = unpack(f.Payload, f.Compression)
	require.NoError(t, err)
	return f
}

func mustWrite(t *testing.T, conn *websocket.Conn, f *frame) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, f.marshal()))
}

func TestTranscribeStreamsAudioAndReturnsText(t *testing.T) {
	headers := make(chan http.Header, 1)
	url := fakeServer(t, func(t *testing.T, r *http.Request, conn *websocket.Conn) {
		headers <- r.Header.Clone()

		req := mustRead(t, conn)
		assert.Equal(t, msgFullClientRequest, req.Type)
		assert.Contains(t, string(req.Payload), `"language":"en-US"`)

		var received []byte
		for {
			f := mustRead(t, conn)
			received = append(received, f.Payload...)
			if f.final() {
				break
			}
		}
		assert.Len(t, received, asrChunkSize+10)

		body, _ := pack([]byte(`{"code":20000000,"result":{"text":" I need help with Instagram "},"audio_info":{"duration":640}}`), compressGzip)
		mustWrite(t, conn, &frame{
			Type:        msgFullServerReply,
			Flags:       flagLastSequence,
			Sequence:    -3,
			Serial:      serialJSON,
			Compression: compressGzip,
			Payload:     body,
		})
	})

	svc := NewService(testConfig(), zap.NewNop(), WithEndpoints(url, ""), WithChunkInterval(time.Millisecond))
	resp, err := svc.Transcribe(context.Background(), &speechmodel.ASRRequest{
		SessionID: "s1",
		Audio:     make([]byte, asrChunkSize+10),
		Format:    "wav",
	})
	require.NoError(t, err)

	assert.Equal(t, "I need help with Instagram", resp.Text)
	assert.Equal(t, int64(640), resp.Duration)
	assert.Equal(t, "s1", resp.SessionID)

	gotHeader := <-headers
	assert.Equal(t, "app", gotHeader.Get("X-Api-App-Key"))
	assert.Equal(t, asrResourceID, gotHeader.Get("X-Api-Resource-Id"))
}

// The server never answers; the deadline must unblock both the chunk sender
// and the transcript reader. Leftover goroutines fail TestMain.
func TestTranscribeDeadlineStopsSenderAndReceiver(t *testing.T) {
	url := fakeServer(t, func(t *testing.T, r *http.Request, conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	cfg := testConfig()
	cfg.Timeout = 100 * time.Millisecond
	svc := NewService(cfg, zap.NewNop(), WithEndpoints(url, ""), WithChunkInterval(time.Hour))

	start := time.Now()
	_, err := svc.Transcribe(context.Background(), &speechmodel.ASRRequest{Audio: make([]byte, 3*asrChunkSize)})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestTranscribeJoinsUtterances(t *testing.T) {
	url := fakeServer(t, func(t *testing.T, r *http.Request, conn *websocket.Conn) {
		mustRead(t, conn)
		mustRead(t, conn)
		mustWrite(t, conn, &frame{
			Type:     msgFullServerReply,
			Flags:    flagLastSequence,
			Sequence: -2,
			Serial:   serialJSON,
			Payload:  []byte(`{"result":{"utterances":[{"text":"hello"},{"text":"buddy"}]}}`),
		})
	})

	svc := NewService(testConfig(), zap.NewNop(), WithEndpoints(url, ""))
	resp, err := svc.Transcribe(context.Background(), &speechmodel.ASRRequest{Audio: []byte("tiny")})
	require.NoError(t, err)
	assert.Equal(t, "hello buddy", resp.Text)
}

func TestTranscribeServerError(t *testing.T) {
	url := fakeServer(t, func(t *testing.T, r *http.Request, conn *websocket.Conn) {
		mustRead(t, conn)
		mustWrite(t, conn, &frame{Type: msgServerError, ErrorCode: 45000002, Payload: []byte("invalid audio")})
		// 等客户端主动断开
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	svc := NewService(testConfig(), zap.NewNop(), WithEndpoints(url, ""), WithChunkInterval(time.Millisecond))
	_, err := svc.Transcribe(context.Background(), &speechmodel.ASRRequest{Audio: make([]byte, asrChunkSize*3)})

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, uint32(45000002), serverErr.Code)
}

func TestSynthesizeCollectsAudio(t *testing.T) {
	url := fakeServer(t, func(t *testing.T, r *http.Request, conn *websocket.Conn) {
		req := mustRead(t, conn)
		assert.Contains(t, string(req.Payload), `"speaker":"en_female_amy_jupiter_bigtts"`)
		assert.Equal(t, ttsSeedResource, r.Header.Get("X-Api-Resource-Id"))

		mustWrite(t, conn, &frame{Type: msgAudioOnlyReply, Payload: []byte("ab")})
		chunk := base64.StdEncoding.EncodeToString([]byte("cd"))
		mustWrite(t, conn, &frame{
			Type:      msgFullServerReply,
			Flags:     flagEvent,
			Serial:    serialJSON,
			Event:     eventSessionFinished,
			SessionID: "sess",
			Payload:   []byte(`{"code":3000,"reqid":"r-1","data":"` + chunk + `","addition":{"duration":"1200"}}`),
		})
	})

	svc := NewService(testConfig(), zap.NewNop(), WithEndpoints("", url))
	resp, err := svc.Synthesize(context.Background(), &speechmodel.TTSRequest{Text: "Hello there!", Format: "wav"})
	require.NoError(t, err)

	assert.Equal(t, []byte("abcd"), resp.Audio)
	assert.Equal(t, "r-1", resp.RequestID)
	assert.Equal(t, int64(1200), resp.Duration)
	assert.Equal(t, "mp3", resp.Format)
}

func TestSynthesizeFallsBackOnResourceMismatch(t *testing.T) {
	var (
		mu        sync.Mutex
		resources []string
	)
	url := fakeServer(t, func(t *testing.T, r *http.Request, conn *websocket.Conn) {
		mu.Lock()
		resources = append(resources, r.Header.Get("X-Api-Resource-Id"))
		attempt := len(resources)
		mu.Unlock()

		mustRead(t, conn)
		if attempt == 1 {
			mustWrite(t, conn, &frame{Type: msgServerError, ErrorCode: 1, Payload: []byte("resource ID is mismatched with speaker related resource")})
			return
		}
		mustWrite(t, conn, &frame{Type: msgAudioOnlyReply, Payload: []byte("ok")})
		mustWrite(t, conn, &frame{Type: msgFullServerReply, Flags: flagLast, Payload: []byte(`{"code":3000}`)})
	})

	svc := NewService(testConfig(), zap.NewNop(), WithEndpoints("", url))
	resp, err := svc.Synthesize(context.Background(), &speechmodel.TTSRequest{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), resp.Audio)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{ttsSeedResource, ttsDefaultResource}, resources)
}

func TestServiceRejectsMissingInputAndCredentials(t *testing.T) {
	svc := NewService(&speechmodel.Config{}, nil)

	_, err := svc.Transcribe(context.Background(), &speechmodel.ASRRequest{})
	assert.True(t, errors.Is(err, ErrEmptyAudio))

	_, err = svc.Transcribe(context.Background(), &speechmodel.ASRRequest{Audio: []byte("x")})
	assert.True(t, errors.Is(err, ErrNotConfigured))

	_, err = svc.Synthesize(context.Background(), &speechmodel.TTSRequest{Text: "  "})
	assert.True(t, errors.Is(err, ErrEmptyText))

	_, err = svc.Synthesize(context.Background(), &speechmodel.TTSRequest{Text: "hi"})
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestResolveVoiceAndResources(t *testing.T) {
	assert.Equal(t, "custom", resolveVoice("custom", "configured"))
	assert.Equal(t, "configured", resolveVoice("default", "configured"))
	assert.Equal(t, defaultVoice, resolveVoice("", ""))
	assert.Equal(t, defaultVoice, resolveVoice("buddy", "configured"))

	assert.Equal(t, []string{ttsCloneResource}, ttsResources("S_abc"))
	assert.Equal(t, []string{ttsSeedResource, ttsDefaultResource}, ttsResources("en_female_amy_jupiter_bigtts"))
	assert.Equal(t, []string{ttsDefaultResource, ttsSeedResource}, ttsResources("BV001_streaming"))
}
