// Package assistant generates session titles from the first exchange of a
// conversation, sharing the session's gateway credential.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/gateway"
	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/session"
)

const titleSystemPrompt = "You are a conversation title generator. " +
	"Based on the dialogue between the user and the AI about a video, generate a concise and accurate title for the session. " +
	"The title should be a few words summarizing the main topic. " +
	"Output only the title; do not include any additional content."

// TitleGenerator produces a short title from the first question and answer
// of a session.
type TitleGenerator struct {
	chatModel model.ToolCallingChatModel
}

// NewTitleGenerator builds a generator on top of an existing genai client
// so the title call reuses the session's credential.
func NewTitleGenerator(ctx context.Context, client *genai.Client, modelName string) (*TitleGenerator, error) {
	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client: client,
		Model:  modelName,
	})
	if err != nil {
		return nil, fmt.Errorf("create title chat model: %w", err)
	}
	return &TitleGenerator{chatModel: chatModel}, nil
}

func (tg *TitleGenerator) Title(ctx context.Context, question, answer string) (string, error) {
	userPrompt := fmt.Sprintf("Please generate a clean title using the following exchange:\n\nUser: %s\nAssistant: %s\n", question, answer)
	resp, err := tg.chatModel.Generate(ctx, []*schema.Message{
		{
			Role:    schema.System,
			Content: titleSystemPrompt,
		},
		{
			Role:    schema.User,
			Content: userPrompt,
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate title: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// TitlerFactory adapts NewTitleGenerator to the session manager. It only
// works with the real Gemini gateway; fakes get no titles.
func TitlerFactory(ctx context.Context, gw gateway.Client, modelName string) (session.Titler, error) {
	raw, ok := gw.(interface{ Raw() *genai.Client })
	if !ok {
		return nil, errors.New("gateway does not expose a genai client")
	}
	return NewTitleGenerator(ctx, raw.Raw(), modelName)
}
