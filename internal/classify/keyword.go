package classify

import (
	"context"
	"strings"
)

// KeywordBackend 基于关键词的离线分类后端。
//
// 不依赖外部服务，用于没有配置 AI 密钥的部署和测试环境。
// 规则故意保守：命中才给标签，否则返回空串交给上层归为未分类。
type KeywordBackend struct{}

// NewKeywordBackend 创建关键词分类后端。
func NewKeywordBackend() *KeywordBackend {
	return &KeywordBackend{}
}

// Name 返回后端名称。
func (b *KeywordBackend) Name() string {
	return "keyword"
}

// Classify 扫描邮件摘要中的信号词。
func (b *KeywordBackend) Classify(_ context.Context, prompt string) (string, error) {
	text := strings.ToLower(prompt)

	switch {
	case containsAny(text, "out of office", "auto-reply", "automatic reply", "on vacation", "annual leave"):
		return "Out of Office", nil
	case containsAny(text, "meeting booked", "meeting confirmed", "calendar invite", "invite accepted", "scheduled a call"):
		return "Meeting Booked", nil
	case containsAny(text, "not interested", "no longer interested", "unsubscribe me", "please remove", "decline"):
		return "Not Interested", nil
	case containsAny(text, "unsubscribe", "limited time offer", "act now", "winner", "lottery", "viagra"):
		return "Spam", nil
	case containsAny(text, "interested", "sounds good", "tell me more", "let's talk", "send over the details"):
		return "Interested", nil
	}

	return "", nil
}

func containsAny(text string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
