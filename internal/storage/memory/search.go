package memory

import (
	"context"
	"sort"
	"strings"

	"onebox/backend/internal/domain"
)

// SearchEmails 搜索邮件（内存存储实现）。
func (s *Store) SearchEmails(_ context.Context, criteria domain.EmailSearchCriteria) (*domain.EmailSearchResult, error) {
	criteria.Normalize()

	s.mu.RLock()
	filtered := make([]domain.Email, 0)
	for _, email := range s.emails {
		if matchesCriteria(email, criteria) {
			filtered = append(filtered, *email)
		}
	}
	s.mu.RUnlock()

	// 按邮件时间倒序排序
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Date.After(filtered[j].Date)
	})

	// 分页
	total := len(filtered)
	start := (criteria.Page - 1) * criteria.PageSize
	end := start + criteria.PageSize

	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	totalPages := (total + criteria.PageSize - 1) / criteria.PageSize

	return &domain.EmailSearchResult{
		Emails:     filtered[start:end],
		Total:      total,
		Page:       criteria.Page,
		PageSize:   criteria.PageSize,
		TotalPages: totalPages,
	}, nil
}

// matchesCriteria 检查邮件是否匹配搜索条件。
func matchesCriteria(email *domain.Email, criteria domain.EmailSearchCriteria) bool {
	if criteria.Account != "" && email.Account != criteria.Account {
		return false
	}
	if criteria.Folder != "" && email.Folder != criteria.Folder {
		return false
	}
	if criteria.Category != "" && email.Category != criteria.Category {
		return false
	}

	// 关键词搜索（主题、正文、发件人）
	if criteria.Query != "" {
		query := strings.ToLower(criteria.Query)
		subject := strings.ToLower(email.Subject)
		body := strings.ToLower(email.Body)
		from := strings.ToLower(email.From.Name + " " + email.From.Address)

		if !strings.Contains(subject, query) &&
			!strings.Contains(body, query) &&
			!strings.Contains(from, query) {
			return false
		}
	}

	return true
}
