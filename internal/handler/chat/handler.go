package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	chatService "github.com/buddyhq/buddy/internal/service/chat"
	"github.com/buddyhq/buddy/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	logger  *zap.Logger
	ws      *WebSocketHandler
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("chat")
	return &Handler{
		chatSvc: chatSvc,
		logger:  logger,
		ws:      NewWebSocketHandler(chatSvc, logger),
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/voice", h.handleVoice)
	r.Get("/session", h.handleSession)
	r.Get("/history", h.handleHistory)
	r.Get("/ws", h.ws.handleWebSocket)
}

type chatRequest struct {
	Message string `json:"message"`
}

// ChatResponse /api/chat 的响应体，未识别的平台与方向为 null。
type ChatResponse struct {
	Response  string  `json:"response"`
	Platform  *string `json:"platform"`
	FocusArea *string `json:"focus_area"`
}

func newChatResponse(reply chatService.Reply) ChatResponse {
	return ChatResponse{
		Response:  reply.Response,
		Platform:  nullable(string(reply.State.Platform)),
		FocusArea: nullable(string(reply.State.FocusArea)),
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// handleChat 处理一轮文字对话；空消息照常交给对话核心。
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply := h.chatSvc.Send(r.Context(), payload.Message)
	h.logger.Debug("chat turn",
		zap.String("kind", string(reply.Kind)),
		zap.String("platform", string(reply.State.Platform)),
		zap.String("focus_area", string(reply.State.FocusArea)),
	)

	utils.RespondJSON(w, http.StatusOK, newChatResponse(reply))
}

// handleVoice 语音对话入口的占位实现，完整流程见 /api/speech/converse。
func (h *Handler) handleVoice(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "not implemented yet"})
}

type sessionView struct {
	Platform        *string `json:"platform"`
	FocusArea       *string `json:"focus_area"`
	LastInteraction any     `json:"last_interaction"`
}

func (h *Handler) handleSession(w http.ResponseWriter, _ *http.Request) {
	state := h.chatSvc.State()
	view := sessionView{
		Platform:  nullable(string(state.Platform)),
		FocusArea: nullable(string(state.FocusArea)),
	}
	if state.LastInteraction != nil {
		view.LastInteraction = state.LastInteraction
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	messages := h.chatSvc.LoadTranscript(r.Context())
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
		"count":    len(messages),
	})
}
