package chat

import (
	"time"

	"github.com/buddyhq/buddy/internal/analysis/intent"
)

// Sender values recorded on transcript messages.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Message persists individual turns for audit/debug.
type Message struct {
	ID        string           `json:"id"`
	Sender    string           `json:"sender"`
	Content   string           `json:"content"`
	Platform  intent.Platform  `json:"platform,omitempty"`
	FocusArea intent.FocusArea `json:"focus_area,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}
