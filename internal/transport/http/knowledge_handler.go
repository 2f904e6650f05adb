package http

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"onebox/backend/internal/orchestrator"
	"onebox/backend/internal/reply"
)

// KnowledgeHandler 回复知识库管理接口
type KnowledgeHandler struct {
	orch *orchestrator.Orchestrator
	log  *zap.Logger
}

// NewKnowledgeHandler 创建知识库处理器
func NewKnowledgeHandler(orch *orchestrator.Orchestrator, log *zap.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{orch: orch, log: log}
}

// ListEntries 列出全部知识库条目
// GET /api/knowledge
func (h *KnowledgeHandler) ListEntries(c *gin.Context) {
	Success(c, h.orch.KnowledgeEntries())
}

// addEntryRequest 新增知识条目请求体
type addEntryRequest struct {
	Text     string `json:"text" binding:"required"`
	Type     string `json:"type"`
	Category string `json:"category"`
}

// AddEntry 新增知识库条目，类型省略时视为回复模板
// POST /api/knowledge
func (h *KnowledgeHandler) AddEntry(c *gin.Context) {
	var req addEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		BadRequest(c, MsgKnowledgeTextEmpty)
		return
	}

	entryType := reply.EntryType(req.Type)
	switch entryType {
	case "":
		entryType = reply.EntryTypeTemplate
	case reply.EntryTypeProduct, reply.EntryTypeAgenda, reply.EntryTypeTemplate:
	default:
		BadRequest(c, "知识条目类型无效")
		return
	}

	entry := h.orch.AddKnowledge(strings.TrimSpace(req.Text), entryType, req.Category)

	h.log.Info("knowledge entry added",
		zap.String("id", entry.ID),
		zap.String("type", string(entry.Type)))

	Created(c, entry)
}
