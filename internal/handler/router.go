package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/buddyhq/buddy/internal/handler/assistant"
	"github.com/buddyhq/buddy/internal/handler/chat"
	"github.com/buddyhq/buddy/internal/handler/speech"
	middlewarePkg "github.com/buddyhq/buddy/internal/middleware"
	assistantModel "github.com/buddyhq/buddy/internal/model/assistant"
	chatService "github.com/buddyhq/buddy/internal/service/chat"
	"github.com/buddyhq/buddy/pkg/utils"
	"github.com/buddyhq/buddy/web"
)

// Dependencies 汇总路由需要的服务；SpeechSvc 为 nil 时语音接口返回 501。
type Dependencies struct {
	ChatSvc        *chatService.Service
	SpeechSvc      speech.SpeechService
	SpeechLanguage string
	Profile        assistantModel.Profile
	Logger         *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chat.New(deps.ChatSvc, logger)
	assistantHandler := assistant.New(deps.Profile)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		assistantHandler.RegisterRoutes(api)

		if deps.SpeechSvc != nil {
			speech.New(deps.SpeechSvc, deps.ChatSvc, deps.SpeechLanguage, logger).RegisterRoutes(api)
		} else {
			speech.RegisterUnavailable(api)
		}
	})

	r.Handle("/*", web.Handler())

	return r
}
