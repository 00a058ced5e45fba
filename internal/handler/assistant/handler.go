package assistant

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/buddyhq/buddy/internal/model/assistant"
	"github.com/buddyhq/buddy/pkg/utils"
)

// Handler 助手资料的HTTP处理器
type Handler struct {
	profile assistant.Profile
}

// New 创建助手资料处理器
func New(profile assistant.Profile) *Handler {
	return &Handler{profile: profile}
}

// RegisterRoutes 注册助手相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/assistant", h.handleProfile)
}

func (h *Handler) handleProfile(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.profile)
}
