package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onebox/backend/internal/domain"
	"onebox/backend/internal/storage"
)

func newTestEmail(id, messageID, account string) *domain.Email {
	return &domain.Email{
		ID:        id,
		MessageID: messageID,
		Account:   account,
		Folder:    "INBOX",
		From:      domain.EmailAddress{Name: "Alice", Address: "alice@example.com"},
		To:        []domain.EmailAddress{{Address: account}},
		Subject:   "Quarterly sync",
		Body:      "Let's discuss the roadmap next week.",
		Date:      time.Now().UTC(),
		Category:  domain.CategoryUncategorized,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestMemoryStore_UpsertAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	email := newTestEmail("id-1", "<msg-1@example.com>", "me@example.com")
	require.NoError(t, store.UpsertEmail(ctx, email))

	got, err := store.GetEmail(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, email.Subject, got.Subject)
	assert.Equal(t, email.MessageID, got.MessageID)

	// 返回的是副本，修改不应影响存储内容
	got.Subject = "mutated"
	again, err := store.GetEmail(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "Quarterly sync", again.Subject)
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	store := NewStore()

	_, err := store.GetEmail(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrEmailNotFound)
}

func TestMemoryStore_Exists(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	ok, err := store.Exists(ctx, "<msg-1@example.com>", "me@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.UpsertEmail(ctx, newTestEmail("id-1", "<msg-1@example.com>", "me@example.com")))

	ok, err = store.Exists(ctx, "<msg-1@example.com>", "me@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	// 同一 MessageID 在不同账户下互不影响
	ok, err = store.Exists(ctx, "<msg-1@example.com>", "other@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_UpsertIdempotent(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	email := newTestEmail("id-1", "<msg-1@example.com>", "me@example.com")
	require.NoError(t, store.UpsertEmail(ctx, email))
	require.NoError(t, store.UpsertEmail(ctx, email))

	result, err := store.SearchEmails(ctx, domain.EmailSearchCriteria{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
}

func TestMemoryStore_UpsertBatch(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	emails := []*domain.Email{
		newTestEmail("id-1", "<msg-1@example.com>", "me@example.com"),
		newTestEmail("id-2", "<msg-2@example.com>", "me@example.com"),
		newTestEmail("id-3", "<msg-3@example.com>", "me@example.com"),
	}
	require.NoError(t, store.UpsertEmails(ctx, emails))

	result, err := store.SearchEmails(ctx, domain.EmailSearchCriteria{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
}

func TestMemoryStore_UpdateEmail(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	email := newTestEmail("id-1", "<msg-1@example.com>", "me@example.com")
	email.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.UpsertEmail(ctx, email))

	category := domain.CategoryInterested
	read := true
	err := store.UpdateEmail(ctx, "id-1", domain.EmailUpdate{Category: &category, Read: &read})
	require.NoError(t, err)

	got, err := store.GetEmail(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryInterested, got.Category)
	assert.True(t, got.Read)
	assert.True(t, got.UpdatedAt.After(email.UpdatedAt))
}

func TestMemoryStore_UpdateNotFound(t *testing.T) {
	store := NewStore()

	category := domain.CategorySpam
	err := store.UpdateEmail(context.Background(), "missing", domain.EmailUpdate{Category: &category})
	assert.ErrorIs(t, err, storage.ErrEmailNotFound)
}

func TestMemoryStore_SearchFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	first := newTestEmail("id-1", "<msg-1@example.com>", "a@example.com")
	first.Subject = "Project kickoff"
	first.Date = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	second := newTestEmail("id-2", "<msg-2@example.com>", "a@example.com")
	second.Subject = "Invoice reminder"
	second.Category = domain.CategorySpam
	second.Date = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	third := newTestEmail("id-3", "<msg-3@example.com>", "b@example.com")
	third.Subject = "Project update"
	third.Date = time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertEmails(ctx, []*domain.Email{first, second, third}))

	// 账户过滤
	result, err := store.SearchEmails(ctx, domain.EmailSearchCriteria{Account: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)

	// 分类过滤
	result, err = store.SearchEmails(ctx, domain.EmailSearchCriteria{Category: domain.CategorySpam})
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
	assert.Equal(t, "id-2", result.Emails[0].ID)

	// 关键词不区分大小写
	result, err = store.SearchEmails(ctx, domain.EmailSearchCriteria{Query: "PROJECT"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)

	// 结果按时间倒序
	result, err = store.SearchEmails(ctx, domain.EmailSearchCriteria{})
	require.NoError(t, err)
	require.Len(t, result.Emails, 3)
	assert.Equal(t, "id-3", result.Emails[0].ID)
	assert.Equal(t, "id-1", result.Emails[2].ID)
}

func TestMemoryStore_SearchPagination(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		email := newTestEmail(
			string(rune('a'+i)),
			"<msg-"+string(rune('a'+i))+"@example.com>",
			"me@example.com",
		)
		email.Date = time.Date(2026, 3, 1+i, 0, 0, 0, 0, time.UTC)
		require.NoError(t, store.UpsertEmail(ctx, email))
	}

	result, err := store.SearchEmails(ctx, domain.EmailSearchCriteria{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 3, result.TotalPages)
	require.Len(t, result.Emails, 2)

	// 超出范围的页码返回空列表而不是错误
	result, err = store.SearchEmails(ctx, domain.EmailSearchCriteria{Page: 10, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, result.Emails)
}
