package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	speechmodel "github.com/buddyhq/buddy/internal/model/speech"
)

const (
	ttsDefaultResource = "volc.service_type.10029"
	ttsSeedResource    = "seed-tts-2.0"
	ttsCloneResource   = "volc.megatts.default"

	// 服务端表示合成结束的业务码
	ttsCodeFinished = 3000
)

const defaultVoice = "en_female_amy_jupiter_bigtts"

type ttsPayload struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string        `json:"speaker"`
		Text        string        `json:"text"`
		AudioParams ttsAudioParam `json:"audio_params"`
		Language    string        `json:"language,omitempty"`
	} `json:"req_params"`
}

type ttsAudioParam struct {
	Format      string  `json:"format"`
	SampleRate  int     `json:"sample_rate"`
	SpeedRatio  float32 `json:"speed_ratio,omitempty"`
	VolumeRatio float32 `json:"volume_ratio,omitempty"`
}

// Synthesize 合成语音。声音与资源 ID 不匹配时依次尝试候选资源。
func (s *Service) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	voice := resolveVoice(req.Voice, s.cfg.TTSVoice)

	var lastErr error
	for i, resource := range ttsResources(voice) {
		resp, err := s.synthesizeOnce(ctx, req, voice, resource)
		if err == nil {
			if i > 0 {
				s.logger.Info("tts fallback resource succeeded",
					zap.String("voice", voice),
					zap.String("resource", resource),
				)
			}
			return resp, nil
		}
		if !resourceMismatch(err) {
			return nil, err
		}
		s.logger.Warn("tts resource mismatch",
			zap.String("voice", voice),
			zap.String("resource", resource),
			zap.Error(err),
		)
		lastErr = err
	}

	return nil, fmt.Errorf("tts: no compatible resource for voice %s: %w", voice, lastErr)
}

func (s *Service) synthesizeOnce(ctx context.Context, req *speechmodel.TTSRequest, voice, resource string) (*speechmodel.TTSResponse, error) {
	connectID := uuid.NewString()
	conn, err := s.dial(ctx, s.ttsURL, resource, connectID)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = connectID
	}

	body, err := json.Marshal(s.buildTTSPayload(req, voice, sessionID))
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}
	if err := writeFrame(conn, requestFrame(body, compressNone)); err != nil {
		return nil, err
	}

	var (
		audio    bytes.Buffer
		reqID    string
		duration int64
	)

	for {
		f, err := readFrame(ctx, conn)
		if err != nil {
			return nil, err
		}

		switch f.Type {
		case msgAudioOnlyReply:
			audio.Write(f.Payload)

		case msgFullServerReply:
			seqFinal := false
			if len(f.Payload) > 0 && gjson.ValidBytes(f.Payload) {
				reply := gjson.ParseBytes(f.Payload)
				if code := reply.Get("code").Int(); code != 0 && code != ttsCodeFinished {
					return nil, &ServerError{Code: uint32(code), Message: reply.Get("message").String()}
				}
				if id := reply.Get("reqid").String(); id != "" {
					reqID = id
				}
				if d := reply.Get("addition.duration").String(); d != "" {
					if ms, err := strconv.ParseInt(d, 10, 64); err == nil {
						duration = ms
					}
				}
				if data := reply.Get("data").String(); data != "" {
					chunk, err := base64.StdEncoding.DecodeString(data)
					if err != nil {
						return nil, fmt.Errorf("decode tts audio chunk: %w", err)
					}
					audio.Write(chunk)
				}
				seqFinal = reply.Get("sequence").Int() < 0
			}

			finished := (f.hasEvent() && f.Event == eventSessionFinished) || (!f.hasEvent() && f.final()) || seqFinal
			if !finished {
				continue
			}
			if audio.Len() == 0 {
				return nil, errors.New("tts returned no audio")
			}
			if reqID == "" {
				reqID = connectID
			}
			return &speechmodel.TTSResponse{
				SessionID: sessionID,
				Audio:     audio.Bytes(),
				Duration:  duration,
				Format:    ttsFormat(req.Format),
				RequestID: reqID,
				CreatedAt: time.Now(),
			}, nil

		default:
			s.logger.Debug("tts ignored frame", zap.Uint8("type", uint8(f.Type)))
		}
	}
}

func (s *Service) buildTTSPayload(req *speechmodel.TTSRequest, voice, uid string) *ttsPayload {
	p := &ttsPayload{}
	p.User.UID = uid
	p.ReqParams.Speaker = voice
	p.ReqParams.Text = req.Text
	p.ReqParams.AudioParams.Format = ttsFormat(req.Format)
	p.ReqParams.AudioParams.SampleRate = 24000

	if speed := firstPositive(req.Speed, s.cfg.TTSSpeed); speed > 0 && speed != 1.0 {
		p.ReqParams.AudioParams.SpeedRatio = speed
	}
	if volume := firstPositive(req.Volume, s.cfg.TTSVolume); volume > 0 && volume != 1.0 {
		p.ReqParams.AudioParams.VolumeRatio = volume
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = strings.TrimSpace(s.cfg.TTSLanguage)
	}
	p.ReqParams.Language = language

	return p
}

func firstPositive(values ...float32) float32 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// ttsFormat 服务端不输出 wav，统一回落为 mp3。
func ttsFormat(format string) string {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "", "wav":
		return "mp3"
	default:
		return f
	}
}

// resolveVoice 选出本次使用的音色，支持少量别名。
func resolveVoice(requested, configured string) string {
	aliases := map[string]string{
		"default":    configured,
		"en_default": defaultVoice,
		"buddy":      defaultVoice,
	}

	for _, candidate := range []string{requested, configured, defaultVoice} {
		candidate = strings.TrimSpace(candidate)
		if mapped, ok := aliases[strings.ToLower(candidate)]; ok {
			candidate = strings.TrimSpace(mapped)
		}
		if candidate != "" {
			return candidate
		}
	}
	return defaultVoice
}

// ttsResources 根据音色名推断资源 ID 的尝试顺序。
func ttsResources(voice string) []string {
	if strings.HasPrefix(voice, "S_") {
		return []string{ttsCloneResource}
	}

	normalized := strings.ToLower(voice)
	for _, hint := range []string{"bigtts", "seed", "megatts", "jupiter", "venus", "uranus", "saturn", "mars"} {
		if strings.Contains(normalized, hint) {
			return []string{ttsSeedResource, ttsDefaultResource}
		}
	}
	return []string{ttsDefaultResource, ttsSeedResource}
}

func resourceMismatch(err error) bool {
	return err != nil && strings.Contains(err.Error(), "resource ID is mismatched")
}
