package assistant

import (
	"github.com/buddyhq/buddy/internal/analysis/intent"
	"github.com/buddyhq/buddy/internal/service/responder"
)

// Profile 描述前端展示的助手信息。
type Profile struct {
	Name        string             `json:"name"`
	Title       string             `json:"title"`
	Tone        string             `json:"tone"`
	Description string             `json:"description"`
	VoiceID     string             `json:"voiceId,omitempty"`
	Platforms   []intent.Platform  `json:"platforms"`
	FocusAreas  []intent.FocusArea `json:"focusAreas"`
	Greetings   []string           `json:"greetings"`
	Farewells   []string           `json:"farewells"`
	// Speech 表示语音接口是否可用
	Speech bool `json:"speech"`
}

// Default 返回 BUDDY 的默认资料，voiceID 为空时不对外暴露音色。
func Default(voiceID string, speechEnabled bool) Profile {
	return Profile{
		Name:        "BUDDY",
		Title:       "Social media management assistant",
		Tone:        "friendly, practical, concise",
		Description: "Answers social media questions with tips gathered from the web.",
		VoiceID:     voiceID,
		Platforms:   intent.Platforms(),
		FocusAreas:  intent.FocusAreas(),
		Greetings:   append([]string(nil), responder.Greetings...),
		Farewells:   append([]string(nil), responder.Farewells...),
		Speech:      speechEnabled,
	}
}
