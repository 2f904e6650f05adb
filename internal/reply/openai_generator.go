package reply

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"onebox/backend/internal/domain"
)

const generatorSystemPrompt = `You are an assistant drafting professional email replies for a sales outreach tool.
Use the provided knowledge context when it is relevant.
Keep the reply short, polite and actionable. Reply with the email body only, no subject line.`

// OpenAIGenerator 使用 OpenAI Chat Completions 生成回复草稿。
type OpenAIGenerator struct {
	api   openai.Client
	model string
}

// NewOpenAIGenerator 创建 OpenAI 回复生成器。
func NewOpenAIGenerator(apiKey, model string) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &OpenAIGenerator{api: client, model: model}, nil
}

// GenerateReply 生成回复草稿。
func (g *OpenAIGenerator) GenerateReply(ctx context.Context, email *domain.Email, knowledgeContext string) (string, error) {
	body := email.Body
	if len(body) > 2000 {
		body = body[:2000]
	}

	var prompt strings.Builder
	if knowledgeContext != "" {
		prompt.WriteString("Knowledge context:\n")
		prompt.WriteString(knowledgeContext)
		prompt.WriteString("\n\n")
	}
	fmt.Fprintf(&prompt, "Email to reply to:\nSubject: %s\nFrom: %s\nBody: %s", email.Subject, email.From.Address, body)

	resp, err := g.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(generatorSystemPrompt),
			openai.UserMessage(prompt.String()),
		},
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(300),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
