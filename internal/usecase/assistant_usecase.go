package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"storefront/internal/textgen"
)

const maxPromptRunes = 4000

// 文章生成は外部サービスに丸投げする。ここは入力チェックとエラーの変換だけ。
type AssistantUsecase struct {
	gen textgen.Generator
	log *slog.Logger
}

func NewAssistantUsecase(gen textgen.Generator, log *slog.Logger) *AssistantUsecase {
	return &AssistantUsecase{gen: gen, log: log}
}

type GenerateOutput struct {
	Text string `json:"text"`
}

func (u *AssistantUsecase) Generate(ctx context.Context, prompt string) (GenerateOutput, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return GenerateOutput{}, ValidationError("prompt is required")
	}
	if utf8.RuneCountInString(prompt) > maxPromptRunes {
		return GenerateOutput{}, ValidationError("prompt is too long")
	}

	text, err := u.gen.Generate(ctx, prompt)
	if errors.Is(err, textgen.ErrNotConfigured) {
		return GenerateOutput{}, ProviderUnavailableError("text generation is not available")
	}
	if err != nil {
		if u.log != nil {
			u.log.Error("text generation failed", "err", err)
		}
		return GenerateOutput{}, ProviderUnavailableError("text generation is temporarily unavailable")
	}
	return GenerateOutput{Text: text}, nil
}
