package chat

import (
	"time"

	"github.com/buddyhq/buddy/internal/analysis/intent"
)

// SessionState is the last known topic of the shared conversation.
type SessionState struct {
	Platform        intent.Platform  `json:"platform"`
	FocusArea       intent.FocusArea `json:"focus_area"`
	LastInteraction *time.Time       `json:"last_interaction"`
}
