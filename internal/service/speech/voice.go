package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	speechmodel "github.com/buddyhq/buddy/internal/model/speech"
)

// 识别失败时交给对话核心的兜底输入。
const (
	NotUnderstoodMessage = "I couldn't understand that. Could you please repeat?"
	ServiceErrorMessage  = "Sorry, there was an error with the speech recognition service."
)

// Listener 把语音识别结果转换成对话输入，任何失败都不会中断对话。
type Listener struct {
	recognizer Recognizer
	language   string
	logger     *zap.Logger
}

// NewListener 创建 Listener；language 为空时由识别服务决定。
func NewListener(recognizer Recognizer, language string, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{recognizer: recognizer, language: language, logger: logger.Named("listener")}
}

// Listen 识别一段音频。空结果映射为 NotUnderstoodMessage，服务错误映射为 ServiceErrorMessage。
func (l *Listener) Listen(ctx context.Context, audio []byte, format string) string {
	if l.recognizer == nil {
		return ServiceErrorMessage
	}

	resp, err := l.recognizer.Transcribe(ctx, &speechmodel.ASRRequest{
		Audio:    audio,
		Format:   format,
		Language: l.language,
	})
	switch {
	case errors.Is(err, ErrEmptyAudio):
		return NotUnderstoodMessage
	case err != nil:
		l.logger.Warn("speech recognition failed", zap.Error(err))
		return ServiceErrorMessage
	case resp == nil || strings.TrimSpace(resp.Text) == "":
		return NotUnderstoodMessage
	}

	text := strings.TrimSpace(resp.Text)
	l.logger.Debug("speech recognized", zap.String("text", text))
	return text
}

// ListenFile 读取录音文件并识别，格式取自扩展名。
func (l *Listener) ListenFile(ctx context.Context, path string) string {
	audio, err := os.ReadFile(path)
	if err != nil {
		l.logger.Warn("read audio clip failed", zap.String("path", path), zap.Error(err))
		return ServiceErrorMessage
	}
	return l.Listen(ctx, audio, AudioFormat(path))
}

// AudioFormat 根据文件名推断音频格式，默认 wav。
func AudioFormat(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	switch ext {
	case "wav", "mp3", "pcm", "ogg", "webm":
		return ext
	default:
		return "wav"
	}
}

// Speaker 输出助手的回复：总是打印文本，配置了合成器时再把音频写入目录。
type Speaker struct {
	out         io.Writer
	synthesizer Synthesizer
	dir         string
	logger      *zap.Logger
}

// NewSpeaker 创建 Speaker。synthesizer 为 nil 或 dir 为空时只输出文本。
func NewSpeaker(out io.Writer, synthesizer Synthesizer, dir string, logger *zap.Logger) *Speaker {
	if out == nil {
		out = os.Stdout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Speaker{out: out, synthesizer: synthesizer, dir: dir, logger: logger.Named("speaker")}
}

// Speak 打印 "BUDDY: {text}"，返回写出的音频路径（未合成时为空）。
func (s *Speaker) Speak(ctx context.Context, text string) string {
	fmt.Fprintf(s.out, "BUDDY: %s\n", text)

	if s.synthesizer == nil || s.dir == "" {
		return ""
	}

	resp, err := s.synthesizer.Synthesize(ctx, &speechmodel.TTSRequest{Text: text})
	if err != nil {
		s.logger.Warn("speech synthesis failed", zap.Error(err))
		return ""
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Warn("create audio dir failed", zap.String("dir", s.dir), zap.Error(err))
		return ""
	}

	format := resp.Format
	if format == "" {
		format = "mp3"
	}
	path := filepath.Join(s.dir, fmt.Sprintf("buddy-%s.%s", uuid.NewString(), format))
	if err := os.WriteFile(path, resp.Audio, 0o644); err != nil {
		s.logger.Warn("write audio failed", zap.String("path", path), zap.Error(err))
		return ""
	}
	return path
}
