package classify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"onebox/backend/internal/domain"
)

// fakeBackend 可编程的测试后端，记录并发情况。
type fakeBackend struct {
	mu         sync.Mutex
	calls      int
	inFlight   int
	maxInFlight int
	fn         func(prompt string) (string, error)
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Classify(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	return f.fn(prompt)
}

func testEmails(n int) []*domain.Email {
	emails := make([]*domain.Email, 0, n)
	for i := 0; i < n; i++ {
		emails = append(emails, &domain.Email{
			ID:       string(rune('a' + i)),
			Subject:  "Re: your proposal",
			From:     domain.EmailAddress{Address: "prospect@example.com"},
			Body:     "Sounds interesting, can we set up a call?",
			Category: domain.CategoryUncategorized,
		})
	}
	return emails
}

func TestMapCategory(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.EmailCategory
	}{
		{"Interested", domain.CategoryInterested},
		{"  interested  ", domain.CategoryInterested},
		{"The sender seems interested.", domain.CategoryInterested},
		{"Meeting Booked", domain.CategoryMeetingBooked},
		{"a meeting was booked", domain.CategoryMeetingBooked},
		{"Not Interested", domain.CategoryNotInterested},
		{"they decline the offer", domain.CategoryNotInterested},
		// 带否定词时不能短路成 Interested，按后续规则判定
		{"not booked yet but interested", domain.CategoryMeetingBooked},
		{"interested? no - this is not spam but promotional", domain.CategorySpam},
		{"interested but not ready to commit", domain.CategoryUncategorized},
		{"Spam", domain.CategorySpam},
		{"Out of Office", domain.CategoryOutOfOffice},
		{"OOO until Monday", domain.CategoryOutOfOffice},
		{"", domain.CategoryUncategorized},
		{"no idea", domain.CategoryUncategorized},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, MapCategory(tt.raw))
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	email := &domain.Email{
		Subject: "Pricing question",
		From:    domain.EmailAddress{Name: "Alice", Address: "alice@example.com"},
		Body:    strings.Repeat("x", 1000),
	}

	prompt := BuildPrompt(email)

	assert.Contains(t, prompt, "Subject: Pricing question")
	assert.Contains(t, prompt, "Alice <alice@example.com>")
	// 正文截断到 500 字符
	assert.LessOrEqual(t, len(prompt), 600)
}

func TestClassifier_AllEmailsGetCategory(t *testing.T) {
	backend := &fakeBackend{fn: func(string) (string, error) {
		return "Interested", nil
	}}
	classifier := NewClassifier(backend, zap.NewNop(), 5)

	emails := testEmails(12)
	require.NoError(t, classifier.ClassifyEmails(context.Background(), emails))

	assert.Equal(t, 12, backend.calls)
	for _, email := range emails {
		assert.Equal(t, domain.CategoryInterested, email.Category)
	}
}

func TestClassifier_ConcurrencyBoundedByBatchSize(t *testing.T) {
	backend := &fakeBackend{fn: func(string) (string, error) {
		return "Spam", nil
	}}
	classifier := NewClassifier(backend, zap.NewNop(), 3)

	require.NoError(t, classifier.ClassifyEmails(context.Background(), testEmails(9)))

	assert.LessOrEqual(t, backend.maxInFlight, 3)
}

func TestClassifier_BackendFailureFallsBackToUncategorized(t *testing.T) {
	var calls int
	var mu sync.Mutex
	backend := &fakeBackend{fn: func(string) (string, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n%2 == 0 {
			return "", errors.New("rate limited")
		}
		return "Meeting Booked", nil
	}}
	classifier := NewClassifier(backend, zap.NewNop(), 2)

	emails := testEmails(4)
	require.NoError(t, classifier.ClassifyEmails(context.Background(), emails))

	// 失败的邮件降级为未分类，成功的保留后端结果，没有邮件被跳过
	for _, email := range emails {
		assert.True(t,
			email.Category == domain.CategoryMeetingBooked || email.Category == domain.CategoryUncategorized,
			"unexpected category %q", email.Category)
	}
}

func TestClassifier_ContextCancelAborts(t *testing.T) {
	backend := &fakeBackend{fn: func(string) (string, error) {
		return "Interested", nil
	}}
	classifier := NewClassifier(backend, zap.NewNop(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := classifier.ClassifyEmails(ctx, testEmails(4))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKeywordBackend(t *testing.T) {
	backend := NewKeywordBackend()
	ctx := context.Background()

	tests := []struct {
		prompt string
		want   string
	}{
		{"Subject: Re: demo\nBody: I'm interested, tell me more", "Interested"},
		{"Subject: automatic reply\nBody: I am out of office until Friday", "Out of Office"},
		{"Subject: meeting confirmed for Tuesday", "Meeting Booked"},
		{"Subject: no thanks\nBody: we are not interested", "Not Interested"},
		{"Subject: WINNER! Act now, limited time offer", "Spam"},
		{"Subject: quarterly report attached", ""},
	}

	for _, tt := range tests {
		raw, err := backend.Classify(ctx, tt.prompt)
		require.NoError(t, err)
		assert.Equal(t, tt.want, raw, "prompt: %s", tt.prompt)
	}
}
