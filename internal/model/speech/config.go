package speech

import "time"

// Config 语音服务配置，由 internal/config 的环境变量映射而来。
type Config struct {
	AppID       string `json:"appId"`
	AccessToken string `json:"accessToken"`

	// ASR
	ASRLanguage string `json:"asrLanguage"`

	// TTS
	TTSVoice    string  `json:"ttsVoice"`
	TTSSpeed    float32 `json:"ttsSpeed"`
	TTSVolume   float32 `json:"ttsVolume"`
	TTSLanguage string  `json:"ttsLanguage"`

	Timeout time.Duration `json:"timeout"`
}

// Configured 判断凭证是否齐全。
func (c *Config) Configured() bool {
	return c != nil && c.AppID != "" && c.AccessToken != ""
}
