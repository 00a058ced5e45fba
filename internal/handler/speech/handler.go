package speech

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	speechmodel "github.com/buddyhq/buddy/internal/model/speech"
	chatService "github.com/buddyhq/buddy/internal/service/chat"
	speechsvc "github.com/buddyhq/buddy/internal/service/speech"
	"github.com/buddyhq/buddy/pkg/utils"
)

const maxAudioBytes = 32 << 20

// SpeechService 抽象语音业务，便于测试与替换实现
type SpeechService interface {
	speechsvc.Recognizer
	speechsvc.Synthesizer
}

// Handler 语音服务的HTTP处理器
type Handler struct {
	speechSvc SpeechService
	chatSvc   *chatService.Service
	listener  *speechsvc.Listener
	language  string
	logger    *zap.Logger
}

// New 创建语音处理器
func New(speechSvc SpeechService, chatSvc *chatService.Service, language string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		speechSvc: speechSvc,
		chatSvc:   chatSvc,
		listener:  speechsvc.NewListener(speechSvc, language, logger),
		language:  language,
		logger:    logger.Named("speech-http"),
	}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(sr chi.Router) {
		sr.Post("/transcribe", h.handleTranscribe)
		sr.Post("/synthesize", h.handleSynthesize)
		sr.Post("/converse", h.handleConverse)
		sr.Get("/health", h.handleHealth)
	})
}

// RegisterUnavailable 语音未配置时挂载的占位路由，统一返回 501。
func RegisterUnavailable(r chi.Router) {
	r.HandleFunc("/speech/*", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondError(w, http.StatusNotImplemented, "speech service not configured")
	})
}

// readAudio 从 multipart 表单读取 audio 字段，返回音频与推断的格式。
func (h *Handler) readAudio(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return nil, "", false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return nil, "", false
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio")
		return nil, "", false
	}

	format := r.FormValue("format")
	if format == "" {
		format = speechsvc.AudioFormat(header.Filename)
	}
	return audio, format, true
}

// handleTranscribe 处理语音转文本请求
func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	audio, format, ok := h.readAudio(w, r)
	if !ok {
		return
	}

	language := r.FormValue("language")
	if language == "" {
		language = h.language
	}

	resp, err := h.speechSvc.Transcribe(r.Context(), &speechmodel.ASRRequest{
		SessionID: r.FormValue("sessionId"),
		Audio:     audio,
		Format:    format,
		Language:  language,
	})
	if err != nil {
		h.logger.Warn("transcribe failed", zap.Error(err))
		utils.RespondError(w, statusFor(err), "speech recognition failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

// handleSynthesize 处理文本转语音请求，成功时直接返回音频。
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req speechmodel.TTSRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	resp, err := h.speechSvc.Synthesize(r.Context(), &req)
	if err != nil {
		h.logger.Warn("synthesize failed", zap.Error(err))
		utils.RespondError(w, statusFor(err), "speech synthesis failed")
		return
	}

	format := resp.Format
	if format == "" {
		format = "mp3"
	}
	w.Header().Set("Content-Type", audioContentType(format))
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.Audio)))
	w.Header().Set("Content-Disposition", "attachment; filename=buddy."+format)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.Audio); err != nil {
		h.logger.Warn("write audio response failed", zap.Error(err))
	}
}

// ConverseResponse 语音对话一轮的结果；合成失败时 Audio 为空。
type ConverseResponse struct {
	Transcript  string  `json:"transcript"`
	Response    string  `json:"response"`
	Platform    *string `json:"platform"`
	FocusArea   *string `json:"focus_area"`
	Audio       string  `json:"audio,omitempty"`
	AudioFormat string  `json:"audio_format,omitempty"`
}

// handleConverse 识别 -> 对话 -> 合成。识别失败时把致歉语作为输入继续对话。
func (h *Handler) handleConverse(w http.ResponseWriter, r *http.Request) {
	if h.chatSvc == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "chat service unavailable")
		return
	}

	audio, format, ok := h.readAudio(w, r)
	if !ok {
		return
	}

	transcript := h.listener.Listen(r.Context(), audio, format)
	reply := h.chatSvc.Send(r.Context(), transcript)

	out := ConverseResponse{
		Transcript: transcript,
		Response:   reply.Response,
		Platform:   nullable(string(reply.State.Platform)),
		FocusArea:  nullable(string(reply.State.FocusArea)),
	}

	tts, err := h.speechSvc.Synthesize(r.Context(), &speechmodel.TTSRequest{Text: reply.Response})
	if err != nil {
		h.logger.Warn("converse synthesis skipped", zap.Error(err))
	} else {
		out.Audio = base64.StdEncoding.EncodeToString(tts.Audio)
		out.AudioFormat = tts.Format
	}

	utils.RespondJSON(w, http.StatusOK, out)
}

// handleHealth 健康检查端点
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "speech",
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, speechsvc.ErrEmptyAudio), errors.Is(err, speechsvc.ErrEmptyText):
		return http.StatusBadRequest
	case errors.Is(err, speechsvc.ErrNotConfigured):
		return http.StatusNotImplemented
	default:
		return http.StatusBadGateway
	}
}

// audioContentType 将合成格式映射为 MIME 类型。
func audioContentType(format string) string {
	switch strings.ToLower(format) {
	case "mp3":
		return "audio/mpeg"
	case "ogg_opus", "ogg":
		return "audio/ogg"
	case "wav":
		return "audio/wav"
	case "pcm":
		return "audio/L16"
	default:
		return "application/octet-stream"
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
