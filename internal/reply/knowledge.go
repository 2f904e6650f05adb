package reply

import (
	"fmt"
	"sync"
	"time"
)

// EntryType 知识条目类型
type EntryType string

const (
	EntryTypeProduct  EntryType = "product"  // 产品信息
	EntryTypeAgenda   EntryType = "agenda"   // 外联议程
	EntryTypeTemplate EntryType = "template" // 回复模板
)

// KnowledgeEntry 知识库条目。
type KnowledgeEntry struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	Type     EntryType `json:"type"`
	Category string    `json:"category,omitempty"`
}

// KnowledgeBase 回复建议使用的知识库，线程安全。
type KnowledgeBase struct {
	mu      sync.RWMutex
	entries []KnowledgeEntry
	index   *tfidfIndex
}

// NewKnowledgeBase 创建带种子条目的知识库。
func NewKnowledgeBase(productName, outreachAgenda, bookingLink string) *KnowledgeBase {
	kb := &KnowledgeBase{index: newTFIDFIndex()}

	seeds := []KnowledgeEntry{
		{
			ID:   "product-info",
			Text: fmt.Sprintf("Product: %s. This is an email management and automation tool.", productName),
			Type: EntryTypeProduct,
		},
		{
			ID:   "outreach-agenda",
			Text: outreachAgenda,
			Type: EntryTypeAgenda,
		},
		{
			ID:       "template-interested",
			Text:     "When someone shows interest, thank them warmly and provide the meeting booking link. Express enthusiasm about discussing further.",
			Type:     EntryTypeTemplate,
			Category: "interested",
		},
		{
			ID:       "template-meeting",
			Text:     "For meeting requests, share your calendar link and suggest available time slots. Be flexible and accommodating.",
			Type:     EntryTypeTemplate,
			Category: "meeting",
		},
		{
			ID:       "template-followup",
			Text:     "For follow-ups, be polite and reference the previous conversation. Ask if they need any additional information.",
			Type:     EntryTypeTemplate,
			Category: "followup",
		},
		{
			ID:   "meeting-link",
			Text: fmt.Sprintf("Include meeting booking link: %s when someone is interested in scheduling a call or meeting.", bookingLink),
			Type: EntryTypeAgenda,
		},
	}

	for _, entry := range seeds {
		kb.add(entry)
	}
	return kb
}

// Add 追加一条知识并纳入检索索引。
func (kb *KnowledgeBase) Add(text string, entryType EntryType, category string) KnowledgeEntry {
	entry := KnowledgeEntry{
		ID:       fmt.Sprintf("custom-%d", time.Now().UnixNano()),
		Text:     text,
		Type:     entryType,
		Category: category,
	}
	kb.add(entry)
	return entry
}

func (kb *KnowledgeBase) add(entry KnowledgeEntry) {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	kb.entries = append(kb.entries, entry)
	kb.index.AddDocument(entry.Text)
}

// Entries 返回全部知识条目的快照。
func (kb *KnowledgeBase) Entries() []KnowledgeEntry {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	out := make([]KnowledgeEntry, len(kb.entries))
	copy(out, kb.entries)
	return out
}

// scoredEntry 带相似度分数的知识条目
type scoredEntry struct {
	KnowledgeEntry
	Score float64
}

// Search 返回与查询最相关的 topK 条知识。
func (kb *KnowledgeBase) Search(query string, topK int) []scoredEntry {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	scores := kb.index.Scores(query)
	scored := make([]scoredEntry, 0, len(kb.entries))
	for i, entry := range kb.entries {
		scored = append(scored, scoredEntry{KnowledgeEntry: entry, Score: scores[i]})
	}

	// 按分数倒序取前 topK
	for i := 0; i < len(scored); i++ {
		for j := i + 1; j < len(scored); j++ {
			if scored[j].Score > scored[i].Score {
				scored[i], scored[j] = scored[j], scored[i]
			}
		}
	}
	if topK < len(scored) {
		scored = scored[:topK]
	}
	return scored
}
