// Package speech 提供基于火山引擎流式接口的语音识别与合成，以及命令行和 HTTP 使用的
// Listener / Speaker 封装。
package speech

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	speechmodel "github.com/buddyhq/buddy/internal/model/speech"
)

const (
	defaultASRURL = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_nostream"
	defaultTTSURL = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"

	asrResourceID = "volc.bigasr.sauc.duration"
)

var (
	// ErrNotConfigured 缺少 AppID 或 AccessToken。
	ErrNotConfigured = errors.New("speech credentials not configured")
	// ErrEmptyAudio 识别请求没有音频数据。
	ErrEmptyAudio = errors.New("no audio data to transcribe")
	// ErrEmptyText 合成请求没有文本。
	ErrEmptyText = errors.New("no text to synthesize")
)

// Recognizer 将音频转为文本。
type Recognizer interface {
	Transcribe(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error)
}

// Synthesizer 将文本转为音频。
type Synthesizer interface {
	Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error)
}

// Service 同时实现 Recognizer 与 Synthesizer，每个请求独占一条 WebSocket 连接。
type Service struct {
	cfg    *speechmodel.Config
	dialer *websocket.Dialer
	logger *zap.Logger

	asrURL        string
	ttsURL        string
	chunkInterval time.Duration
}

// Option 调整 Service 的可选参数。
type Option func(*Service)

// WithEndpoints 覆盖默认的 ASR / TTS 地址，空字符串保持默认。
func WithEndpoints(asrURL, ttsURL string) Option {
	return func(s *Service) {
		if asrURL != "" {
			s.asrURL = asrURL
		}
		if ttsURL != "" {
			s.ttsURL = ttsURL
		}
	}
}

// WithChunkInterval 设置音频分包之间的发送间隔。
func WithChunkInterval(d time.Duration) Option {
	return func(s *Service) {
		s.chunkInterval = d
	}
}

// NewService 创建语音服务实例
func NewService(cfg *speechmodel.Config, logger *zap.Logger, opts ...Option) *Service {
	if cfg == nil {
		cfg = &speechmodel.Config{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		cfg:           cfg,
		dialer:        &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		logger:        logger.Named("speech"),
		asrURL:        defaultASRURL,
		ttsURL:        defaultTTSURL,
		chunkInterval: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured 判断凭证是否可用。
func (s *Service) Configured() bool {
	return s.cfg.Configured()
}

// withTimeout 按配置为单次请求加上超时。
func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, s.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// dial 建立一条带鉴权头的 WebSocket 连接。
func (s *Service) dial(ctx context.Context, url, resourceID, connectID string) (*websocket.Conn, error) {
	appID := strings.TrimSpace(s.cfg.AppID)
	token := strings.TrimSpace(s.cfg.AccessToken)
	if appID == "" || token == "" {
		return nil, ErrNotConfigured
	}

	header := http.Header{}
	header.Set("X-Api-App-Key", appID)
	header.Set("X-Api-Access-Key", token)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := s.dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
		s.logger.Debug("speech connection established",
			zap.String("resource", resourceID),
			zap.String("logid", logid),
		)
	}

	// ctx 结束时关闭连接，解除阻塞中的读写
	context.AfterFunc(ctx, func() { _ = conn.Close() })

	return conn, nil
}

// readFrame 读取并解码下一帧，payload 已解压。
func readFrame(ctx context.Context, conn *websocket.Conn) (*frame, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read frame: %w", err)
	}

	f, err := unmarshalFrame(data)
	if err != nil {
		return nil, err
	}

	if f.Payload, err = unpack(f.Payload, f.Compression); err != nil {
		return nil, err
	}

	if f.Type == msgServerError {
		return nil, &ServerError{Code: f.ErrorCode, Message: string(f.Payload)}
	}
	return f, nil
}

// writeFrame 编码并发送一帧。
func writeFrame(conn *websocket.Conn, f *frame) error {
	if err := conn.WriteMessage(websocket.BinaryMessage, f.marshal()); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ServerError 服务端返回的错误帧或非零业务码。
type ServerError struct {
	Code    uint32
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("speech server error %d: %s", e.Code, e.Message)
}
