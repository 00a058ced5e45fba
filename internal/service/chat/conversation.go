package chat

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"

	"github.com/buddyhq/buddy/internal/service/responder"
)

var (
	exitWords     = []string{"exit", "quit", "bye", "goodbye"}
	declineWords  = append(slices.Clone(exitWords), "no")
	trailingPunct = ".!?,"
)

// Input 提供下一句用户输入，没有更多输入时返回 io.EOF。
type Input interface {
	Next(ctx context.Context) (string, error)
}

// InputFunc 允许用普通函数实现 Input。
type InputFunc func(ctx context.Context) (string, error)

// Next implements Input.
func (f InputFunc) Next(ctx context.Context) (string, error) { return f(ctx) }

// Output 输出助手的话，返回值（如写出的音频路径）可忽略。
type Output interface {
	Speak(ctx context.Context, text string) string
}

// RunConversation 驱动一次交互式对话：先问候，每轮回答后询问是否继续，
// 遇到退出词或输入结束时道别。
func (s *Service) RunConversation(ctx context.Context, in Input, out Output) error {
	out.Speak(ctx, s.Greeting())

	for {
		text, err := in.Next(ctx)
		if err != nil {
			return s.finish(ctx, out, err)
		}
		if matchesAny(text, exitWords) {
			out.Speak(ctx, s.Farewell())
			return nil
		}

		reply := s.Send(ctx, text)
		out.Speak(ctx, reply.Response)
		out.Speak(ctx, responder.ContinuePrompt)

		answer, err := in.Next(ctx)
		if err != nil {
			return s.finish(ctx, out, err)
		}
		if matchesAny(answer, declineWords) {
			out.Speak(ctx, s.Farewell())
			return nil
		}
	}
}

func (s *Service) finish(ctx context.Context, out Output, err error) error {
	if errors.Is(err, io.EOF) {
		out.Speak(ctx, s.Farewell())
		return nil
	}
	return err
}

// matchesAny 整句比较；识别结果常带句末标点，先去掉。
func matchesAny(text string, words []string) bool {
	normalized := strings.Trim(strings.ToLower(strings.TrimSpace(text)), trailingPunct)
	return slices.Contains(words, normalized)
}
