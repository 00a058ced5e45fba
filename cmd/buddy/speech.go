package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	speechModel "github.com/buddyhq/buddy/internal/model/speech"
	"github.com/buddyhq/buddy/internal/service/speech"
)

var (
	speechTimeout time.Duration
	speechLang    string
	ttsVoice      string
	ttsOut        string
)

// speechCmd 用于单独验证语音凭证与接口连通性。
var speechCmd = &cobra.Command{
	Use:   "speech",
	Short: "Exercise the speech recognition and synthesis services",
}

var asrCmd = &cobra.Command{
	Use:   "asr <audio-file>",
	Short: "Transcribe an audio file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := requireSpeech()
		if err != nil {
			return err
		}

		audio, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}

		language := speechLang
		if language == "" {
			language = cfg.Speech.ASRLanguage
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), speechTimeout)
		defer cancel()

		start := time.Now()
		resp, err := svc.Transcribe(ctx, &speechModel.ASRRequest{
			Audio:    audio,
			Format:   speech.AudioFormat(args[0]),
			Language: language,
		})
		if err != nil {
			return fmt.Errorf("transcribe: %w", err)
		}

		logger.Info("asr finished",
			zap.Duration("elapsed", time.Since(start)),
			zap.Int64("audio_ms", resp.Duration),
		)
		fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
		return nil
	},
}

var ttsCmd = &cobra.Command{
	Use:   "tts <text>",
	Short: "Synthesize text to an audio file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := requireSpeech()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), speechTimeout)
		defer cancel()

		resp, err := svc.Synthesize(ctx, &speechModel.TTSRequest{Text: args[0], Voice: ttsVoice})
		if err != nil {
			return fmt.Errorf("synthesize: %w", err)
		}

		out := ttsOut
		if out == "" {
			out = fmt.Sprintf("buddy_tts_%s.%s", time.Now().Format("20060102_150405"), resp.Format)
		}
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if err := os.WriteFile(out, resp.Audio, 0o644); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(resp.Audio), out)
		return nil
	},
}

func init() {
	speechCmd.PersistentFlags().DurationVar(&speechTimeout, "timeout", 45*time.Second, "request timeout")
	asrCmd.Flags().StringVar(&speechLang, "lang", "", "language code, defaults to SPEECH_ASR_LANGUAGE")
	ttsCmd.Flags().StringVar(&ttsVoice, "voice", "", "voice id, defaults to SPEECH_TTS_VOICE")
	ttsCmd.Flags().StringVar(&ttsOut, "out", "", "output file (default buddy_tts_<time>.<format>)")

	speechCmd.AddCommand(asrCmd, ttsCmd)
}

func requireSpeech() (*speech.Service, error) {
	if !cfg.Speech.Enabled {
		return nil, errors.New("speech is disabled: set SPEECH_APP_ID and SPEECH_ACCESS_TOKEN")
	}
	return speech.NewService(speechConfig(cfg.Speech), logger), nil
}
