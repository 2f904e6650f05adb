package classify

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// systemPrompt 约束模型只返回闭集中的一个标签。
const systemPrompt = `You are an email classifier for a sales outreach tool.
Classify the email into exactly one of these categories:
- Interested: the sender shows interest in the product or offer
- Meeting Booked: a meeting has been scheduled or confirmed
- Not Interested: the sender explicitly declines or shows no interest
- Spam: unsolicited bulk or promotional email
- Out of Office: an automatic out-of-office reply

Respond with ONLY the category name, nothing else.`

// OpenAIBackend 使用 OpenAI Chat Completions 接口进行分类。
type OpenAIBackend struct {
	api   openai.Client
	model string
}

// NewOpenAIBackend 创建 OpenAI 分类后端。
func NewOpenAIBackend(apiKey, model string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &OpenAIBackend{api: client, model: model}, nil
}

// Name 返回后端名称。
func (b *OpenAIBackend) Name() string {
	return "openai"
}

// Classify 调用 Chat Completions 对邮件摘要分类。
func (b *OpenAIBackend) Classify(ctx context.Context, prompt string) (string, error) {
	resp, err := b.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: b.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(20),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
