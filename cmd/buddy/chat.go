package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/buddyhq/buddy/internal/service/chat"
	"github.com/buddyhq/buddy/internal/service/speech"
)

var (
	voiceClips []string
	audioOut   string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to BUDDY in the terminal",
	Long: `Start an interactive conversation. Type your questions, or pass recorded
clips with --voice to have them transcribed. Say "exit", "quit", "bye" or
"goodbye" to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg, logger)
		a.session.Reset()

		var synthesizer speech.Synthesizer
		if a.speech != nil && audioOut != "" {
			synthesizer = a.speech
		}
		speaker := speech.NewSpeaker(cmd.OutOrStdout(), synthesizer, audioOut, logger)

		var input chat.Input
		if len(voiceClips) > 0 {
			if a.speech == nil {
				return errors.New("--voice needs SPEECH_APP_ID and SPEECH_ACCESS_TOKEN")
			}
			input = clipInput(speech.NewListener(a.speech, cfg.Speech.ASRLanguage, logger), voiceClips, cmd.OutOrStdout())
		} else {
			input = textInput(cmd.InOrStdin(), cmd.OutOrStdout())
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Welcome to BUDDY - Your AI Social Media Manager")
		return a.chat.RunConversation(cmd.Context(), input, speaker)
	},
}

func init() {
	chatCmd.Flags().StringSliceVar(&voiceClips, "voice", nil, "audio clips to use as spoken input, in order")
	chatCmd.Flags().StringVar(&audioOut, "audio-out", "", "directory for synthesized replies (requires speech credentials)")
}

// textInput 逐行读取标准输入。
func textInput(r io.Reader, w io.Writer) chat.Input {
	scanner := bufio.NewScanner(r)
	return chat.InputFunc(func(ctx context.Context) (string, error) {
		fmt.Fprint(w, "You: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return scanner.Text(), nil
	})
}

// clipInput 依次识别录音文件，全部用完后结束对话。
func clipInput(listener *speech.Listener, clips []string, w io.Writer) chat.Input {
	next := 0
	return chat.InputFunc(func(ctx context.Context) (string, error) {
		if next >= len(clips) {
			return "", io.EOF
		}
		clip := clips[next]
		next++

		fmt.Fprintf(w, "Listening... (%s)\n", clip)
		text := listener.ListenFile(ctx, clip)
		fmt.Fprintf(w, "You said: %s\n", text)
		return text, nil
	})
}
