package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/buddyhq/buddy/internal/config"
	speechModel "github.com/buddyhq/buddy/internal/model/speech"
	"github.com/buddyhq/buddy/internal/service/chat"
	"github.com/buddyhq/buddy/internal/service/responder"
	"github.com/buddyhq/buddy/internal/service/search"
	"github.com/buddyhq/buddy/internal/service/session"
	"github.com/buddyhq/buddy/internal/service/speech"
)

// app 持有一次进程内共享的服务实例。
type app struct {
	session   *session.Store
	responder *responder.Responder
	chat      *chat.Service
	speech    *speech.Service
}

func newApp(cfg *config.Config, logger *zap.Logger) *app {
	googleCfg := search.GoogleConfig{
		APIKey:   cfg.Search.APIKey,
		EngineID: cfg.Search.EngineID,
		Endpoint: cfg.Search.Endpoint,
		Timeout:  cfg.Search.Timeout,
	}
	if !googleCfg.Configured() {
		logger.Warn("search credentials not configured, answers will use fallback messages")
	}

	retriever := search.NewGoogleRetriever(googleCfg, &http.Client{Timeout: cfg.Search.Timeout}, logger)
	store := session.NewStore()
	r := responder.New(responder.Options{
		Searcher: search.FromRetriever(retriever, search.MaxResults),
		Session:  store,
		Logger:   logger,
	})

	a := &app{
		session:   store,
		responder: r,
		chat:      chat.NewService(r),
	}

	if cfg.Speech.Enabled {
		a.speech = speech.NewService(speechConfig(cfg.Speech), logger)
		logger.Info("speech service enabled", zap.String("voice", cfg.Speech.TTSVoice))
	} else {
		logger.Info("speech credentials not configured, speech features disabled")
	}

	return a
}

func speechConfig(c config.SpeechConfig) *speechModel.Config {
	return &speechModel.Config{
		AppID:       c.AppID,
		AccessToken: c.AccessToken,
		ASRLanguage: c.ASRLanguage,
		TTSVoice:    c.TTSVoice,
		TTSSpeed:    c.TTSSpeed,
		TTSVolume:   c.TTSVolume,
		TTSLanguage: c.TTSLanguage,
		Timeout:     time.Duration(c.Timeout) * time.Second,
	}
}
