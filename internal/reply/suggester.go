package reply

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"onebox/backend/internal/domain"
)

// contextTopK 检索送入生成器的知识条数
const contextTopK = 3

// defaultBookingLink 回退模板里的预约链接
const defaultBookingLink = "https://cal.com/example"

// Generator 基于邮件与知识上下文生成回复文本。
type Generator interface {
	GenerateReply(ctx context.Context, email *domain.Email, knowledgeContext string) (string, error)
}

// SuggestedReply 回复建议结果。
type SuggestedReply struct {
	EmailID    string   `json:"emailId"`
	Suggestion string   `json:"suggestion"`
	Confidence float64  `json:"confidence"`
	Context    []string `json:"context"`
}

// Suggester 基于知识库检索与模板回退的回复建议器。
//
// 生成器可选：未配置或调用失败时退回关键词模板，
// 所以建议接口总能给出可用的回复文本。
type Suggester struct {
	kb        *KnowledgeBase
	generator Generator
	log       *zap.Logger
}

// NewSuggester 创建回复建议器。generator 可以为 nil。
func NewSuggester(kb *KnowledgeBase, generator Generator, log *zap.Logger) *Suggester {
	return &Suggester{kb: kb, generator: generator, log: log}
}

// KnowledgeBase 返回底层知识库。
func (s *Suggester) KnowledgeBase() *KnowledgeBase {
	return s.kb
}

// SuggestReply 为一封邮件生成回复建议。
func (s *Suggester) SuggestReply(ctx context.Context, email *domain.Email) *SuggestedReply {
	matched := s.kb.Search(email.Subject+" "+email.Body, contextTopK)

	contextTexts := make([]string, 0, len(matched))
	for _, entry := range matched {
		if entry.Score > 0 {
			contextTexts = append(contextTexts, entry.Text)
		}
	}

	if s.generator != nil {
		suggestion, err := s.generator.GenerateReply(ctx, email, strings.Join(contextTexts, "\n\n"))
		if err == nil {
			return &SuggestedReply{
				EmailID:    email.ID,
				Suggestion: suggestion,
				Confidence: confidence(matched),
				Context:    contextTexts,
			}
		}
		s.log.Warn("reply generation failed, using template fallback",
			zap.String("email_id", email.ID),
			zap.Error(err))
	}

	return &SuggestedReply{
		EmailID:    email.ID,
		Suggestion: fallbackReply(email),
		Confidence: 0.5,
		Context:    []string{"Using template-based fallback"},
	}
}

// confidence 用最高检索分数估计建议置信度。
func confidence(matched []scoredEntry) float64 {
	if len(matched) == 0 {
		return 0.3
	}

	max := 0.0
	for _, entry := range matched {
		if entry.Score > max {
			max = entry.Score
		}
	}

	normalized := max / 10
	if normalized > 1 {
		normalized = 1
	}
	if normalized < 0.5 {
		return 0.5
	}
	return normalized
}

// fallbackReply 关键词模板回退。
func fallbackReply(email *domain.Email) string {
	subject := strings.ToLower(email.Subject)
	body := strings.ToLower(email.Body)

	switch {
	case strings.Contains(body, "interested") || strings.Contains(body, "sounds good") || strings.Contains(body, "let's talk"):
		return "Thank you for your interest! I'm excited to discuss this further with you.\n\n" +
			"You can book a time that works best for you here: " + defaultBookingLink + "\n\n" +
			"Looking forward to our conversation!\n\nBest regards"
	case strings.Contains(body, "meeting") || strings.Contains(body, "schedule") || strings.Contains(body, "call"):
		return "Thank you for reaching out! I'd be happy to schedule a meeting.\n\n" +
			"Please feel free to book a convenient time slot here: " + defaultBookingLink + "\n\n" +
			"Looking forward to connecting!\n\nBest regards"
	case strings.Contains(subject, "interview") || strings.Contains(body, "interview"):
		return "Thank you for considering my application! I'm very interested in this opportunity and would love to schedule an interview.\n\n" +
			"I'm available at your convenience. Please let me know what times work best for you, or feel free to book directly: " + defaultBookingLink + "\n\n" +
			"Looking forward to speaking with you!\n\nBest regards"
	default:
		return "Thank you for your email. I appreciate you reaching out.\n\n" +
			"I'd be happy to discuss this further. Please let me know how I can assist you.\n\nBest regards"
	}
}
