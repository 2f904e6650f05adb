package reply

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"onebox/backend/internal/domain"
)

func newTestKB() *KnowledgeBase {
	return NewKnowledgeBase("OneBox", "We help teams automate their email outreach.", "https://cal.com/example")
}

// stubGenerator 可编程的测试生成器。
type stubGenerator struct {
	reply string
	err   error
	// 记录收到的知识上下文
	lastContext string
}

func (s *stubGenerator) GenerateReply(_ context.Context, _ *domain.Email, knowledgeContext string) (string, error) {
	s.lastContext = knowledgeContext
	return s.reply, s.err
}

func TestKnowledgeBase_Seeded(t *testing.T) {
	kb := newTestKB()

	entries := kb.Entries()
	require.NotEmpty(t, entries)

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}
	assert.Contains(t, ids, "product-info")
	assert.Contains(t, ids, "template-interested")
}

func TestKnowledgeBase_AddAndSearch(t *testing.T) {
	kb := newTestKB()

	added := kb.Add("Our pricing starts at 49 dollars per month for the starter plan.", EntryTypeProduct, "pricing")
	assert.NotEmpty(t, added.ID)

	matched := kb.Search("what is your pricing per month", 3)
	require.NotEmpty(t, matched)
	// 与定价最相关的条目应排在最前
	assert.Equal(t, added.ID, matched[0].ID)
	assert.Greater(t, matched[0].Score, 0.0)
}

func TestSuggester_UsesGenerator(t *testing.T) {
	gen := &stubGenerator{reply: "Thanks, happy to chat on Tuesday."}
	suggester := NewSuggester(newTestKB(), gen, zap.NewNop())

	email := &domain.Email{
		ID:      "id-1",
		Subject: "Re: demo",
		Body:    "I'm interested in scheduling a meeting to see the product.",
	}

	result := suggester.SuggestReply(context.Background(), email)

	assert.Equal(t, "id-1", result.EmailID)
	assert.Equal(t, "Thanks, happy to chat on Tuesday.", result.Suggestion)
	assert.GreaterOrEqual(t, result.Confidence, 0.5)
	assert.NotEmpty(t, result.Context)
	// 生成器收到了检索出的知识上下文
	assert.NotEmpty(t, gen.lastContext)
}

func TestSuggester_FallsBackOnGeneratorError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("quota exceeded")}
	suggester := NewSuggester(newTestKB(), gen, zap.NewNop())

	email := &domain.Email{
		ID:      "id-2",
		Subject: "Re: proposal",
		Body:    "Sounds good, I'm interested!",
	}

	result := suggester.SuggestReply(context.Background(), email)

	assert.Contains(t, result.Suggestion, "Thank you for your interest")
	assert.Equal(t, 0.5, result.Confidence)
	assert.Equal(t, []string{"Using template-based fallback"}, result.Context)
}

func TestSuggester_TemplateFallbackWithoutGenerator(t *testing.T) {
	suggester := NewSuggester(newTestKB(), nil, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name    string
		email   *domain.Email
		wantSub string
	}{
		{
			name:    "感兴趣模板",
			email:   &domain.Email{ID: "a", Body: "I'm interested, let's talk"},
			wantSub: "Thank you for your interest",
		},
		{
			name:    "会议模板",
			email:   &domain.Email{ID: "b", Body: "can we schedule a call"},
			wantSub: "happy to schedule a meeting",
		},
		{
			name:    "面试模板",
			email:   &domain.Email{ID: "c", Subject: "Interview invitation", Body: "we would like to invite you"},
			wantSub: "schedule an interview",
		},
		{
			name:    "通用模板",
			email:   &domain.Email{ID: "d", Body: "please see the attached report"},
			wantSub: "I appreciate you reaching out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := suggester.SuggestReply(ctx, tt.email)
			assert.Contains(t, result.Suggestion, tt.wantSub)
		})
	}
}

func TestTFIDFIndex(t *testing.T) {
	idx := newTFIDFIndex()
	idx.AddDocument("the quick brown fox")
	idx.AddDocument("pricing plans and billing")
	idx.AddDocument("quick start guide")

	scores := idx.Scores("billing and pricing")
	require.Len(t, scores, 3)
	assert.Greater(t, scores[1], scores[0])
	assert.Greater(t, scores[1], scores[2])

	// 未知词不贡献分数
	zero := idx.Scores("zzz unknown")
	assert.Equal(t, []float64{0, 0, 0}, zero)
}
