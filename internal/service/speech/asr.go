package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	speechmodel "github.com/buddyhq/buddy/internal/model/speech"
)

const (
	// 16kHz 16bit 单声道下约 200ms 的音频
	asrChunkSize = 6400
	// 识别成功的业务码
	asrCodeOK = 20000000
)

type asrPayload struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
		EndWindowSize  int    `json:"end_window_size,omitempty"`
	} `json:"request"`
}

// Transcribe 识别一段完整音频。发送与接收在同一 errgroup 中并发进行，
// 服务端提前报错时立即停止发送。
func (s *Service) Transcribe(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	if req == nil || len(req.Audio) == 0 {
		return nil, ErrEmptyAudio
	}
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conn, err := s.dial(ctx, s.asrURL, asrResourceID, sessionID)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	body, err := json.Marshal(s.buildASRPayload(req, sessionID))
	if err != nil {
		return nil, fmt.Errorf("marshal asr request: %w", err)
	}
	packed, err := pack(body, compressGzip)
	if err != nil {
		return nil, err
	}
	if err := writeFrame(conn, requestFrame(packed, compressGzip)); err != nil {
		return nil, err
	}

	var result *speechmodel.ASRResponse

	g, gctx := errgroup.WithContext(ctx)
	sendCtx, stopSending := context.WithCancel(gctx)
	defer stopSending()
	// 任一方失败时关闭连接，让阻塞中的读取返回
	context.AfterFunc(gctx, func() { _ = conn.Close() })

	g.Go(func() error {
		return s.sendAudio(sendCtx, conn, req.Audio)
	})
	g.Go(func() error {
		resp, err := s.receiveTranscript(gctx, conn, sessionID)
		if err != nil {
			return err
		}
		result = resp
		stopSending()
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("asr: %w", err)
	}
	return result, nil
}

func (s *Service) buildASRPayload(req *speechmodel.ASRRequest, uid string) *asrPayload {
	p := &asrPayload{}
	p.User.UID = uid

	p.Audio.Format = strings.ToLower(strings.TrimSpace(req.Format))
	if p.Audio.Format == "" {
		p.Audio.Format = "wav"
	}
	p.Audio.Language = strings.TrimSpace(req.Language)
	if p.Audio.Language == "" {
		p.Audio.Language = s.cfg.ASRLanguage
	}
	p.Audio.Codec = "raw"
	p.Audio.Rate = 16000
	p.Audio.Bits = 16
	p.Audio.Channel = 1

	p.Request.ModelName = "bigmodel"
	p.Request.EnableITN = true
	p.Request.EnablePunc = true
	p.Request.ShowUtterances = true
	p.Request.ResultType = "full"
	p.Request.EndWindowSize = 800
	return p
}

// sendAudio 分包发送音频，序号从 2 开始（1 为请求帧）。接收方拿到结果后取消 ctx，
// 此时直接返回 nil。
func (s *Service) sendAudio(ctx context.Context, conn *websocket.Conn, audio []byte) error {
	seq := int32(2)
	for start := 0; start < len(audio); start += asrChunkSize {
		end := min(start+asrChunkSize, len(audio))
		last := end == len(audio)

		chunk, err := pack(audio[start:end], compressGzip)
		if err != nil {
			return err
		}
		if err := writeFrame(conn, audioFrame(chunk, seq, last, compressGzip)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("send audio chunk %d: %w", seq, err)
		}
		seq++

		if last {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.chunkInterval):
		}
	}
	return nil
}

// receiveTranscript 持续读取识别结果，直到服务端发出最后一帧。
func (s *Service) receiveTranscript(ctx context.Context, conn *websocket.Conn, sessionID string) (*speechmodel.ASRResponse, error) {
	var (
		text     string
		duration int64
	)

	for {
		f, err := readFrame(ctx, conn)
		if err != nil {
			return nil, err
		}
		if f.Type != msgFullServerReply {
			continue
		}

		if !gjson.ValidBytes(f.Payload) {
			s.logger.Warn("asr reply is not valid json", zap.Int("bytes", len(f.Payload)))
			continue
		}
		reply := gjson.ParseBytes(f.Payload)

		if code := reply.Get("code").Int(); code != 0 && code != asrCodeOK {
			return nil, &ServerError{Code: uint32(code), Message: reply.Get("message").String()}
		}

		if candidate := transcriptText(reply); candidate != "" {
			text = candidate
		}
		if d := reply.Get("audio_info.duration").Int(); d > 0 {
			duration = d
		}

		if f.final() || reply.Get("sequence").Int() < 0 {
			if text == "" {
				s.logger.Info("asr empty transcript", zap.String("session", sessionID))
			}
			return &speechmodel.ASRResponse{
				SessionID: sessionID,
				Text:      text,
				Duration:  duration,
				RequestID: sessionID,
				CreatedAt: time.Now(),
			}, nil
		}
	}
}

// transcriptText 优先取整句文本，否则拼接分句。
func transcriptText(reply gjson.Result) string {
	if text := strings.TrimSpace(reply.Get("result.text").String()); text != "" {
		return text
	}

	var parts []string
	for _, u := range reply.Get("result.utterances.#.text").Array() {
		if t := strings.TrimSpace(u.String()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
