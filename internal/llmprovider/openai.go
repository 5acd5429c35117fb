package llmprovider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
	"github.com/openai/openai-go/v2/shared"

	"github.com/Zach-hammad/repotoire-sub004/internal/errs"
)

// openAIClient speaks the OpenAI-chat-style convention: the system prompt,
// when present, is prepended to the messages array as a system-role
// message rather than passed as a separate field.
type openAIClient struct {
	client openai.Client
	model  string
}

func newOpenAIClient(apiKey, model string) *openAIClient {
	return &openAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *openAIClient) Backend() string { return string(BackendOpenAI) }

func (c *openAIClient) Generate(ctx context.Context, req Request) (string, error) {
	model := c.model
	if model == "" {
		model = "gpt-4o-mini"
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(model),
		Messages:    msgs,
		Temperature: param.NewOpt(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", errs.NewUpstream(c.Backend(), "generate", err)
	}
	if len(resp.Choices) == 0 {
		return "", errs.NewUpstream(c.Backend(), "generate", fmt.Errorf("no choices returned"))
	}
	return resp.Choices[0].Message.Content, nil
}
