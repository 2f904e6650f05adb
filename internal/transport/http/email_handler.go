package http

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"onebox/backend/internal/domain"
	"onebox/backend/internal/orchestrator"
)

// EmailHandler 邮件查询与操作接口
type EmailHandler struct {
	orch *orchestrator.Orchestrator
	log  *zap.Logger
}

// NewEmailHandler 创建邮件处理器
func NewEmailHandler(orch *orchestrator.Orchestrator, log *zap.Logger) *EmailHandler {
	return &EmailHandler{orch: orch, log: log}
}

// parseCriteria 从查询参数构造搜索条件
func parseCriteria(c *gin.Context) (domain.EmailSearchCriteria, error) {
	criteria := domain.EmailSearchCriteria{
		Account:  strings.ToLower(strings.TrimSpace(c.Query("account"))),
		Folder:   strings.TrimSpace(c.Query("folder")),
		Category: domain.EmailCategory(strings.TrimSpace(c.Query("category"))),
		Query:    strings.TrimSpace(c.Query("q")),
	}

	if criteria.Category != "" && !criteria.Category.IsValid() {
		return criteria, domain.ErrInvalidCategory
	}

	if page := c.Query("page"); page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			return criteria, errInvalidPagination
		}
		criteria.Page = n
	}
	if size := c.Query("pageSize"); size != "" {
		n, err := strconv.Atoi(size)
		if err != nil || n < 1 {
			return criteria, errInvalidPagination
		}
		criteria.PageSize = n
	}

	return criteria, nil
}

// ListEmails 列出邮件，支持账户、文件夹、分类筛选和分页
// GET /api/emails
func (h *EmailHandler) ListEmails(c *gin.Context) {
	criteria, err := parseCriteria(c)
	if err != nil {
		BadRequest(c, GetErrorMessage(err))
		return
	}

	result, err := h.orch.SearchEmails(c.Request.Context(), criteria)
	if err != nil {
		h.log.Error("failed to list emails", zap.Error(err))
		respondError(c, err)
		return
	}
	Success(c, result)
}

// SearchEmails 按关键词搜索邮件
// GET /api/emails/search?q=...
func (h *EmailHandler) SearchEmails(c *gin.Context) {
	criteria, err := parseCriteria(c)
	if err != nil {
		BadRequest(c, GetErrorMessage(err))
		return
	}
	if criteria.Query == "" {
		BadRequest(c, MsgEmptySearchQuery)
		return
	}

	result, err := h.orch.SearchEmails(c.Request.Context(), criteria)
	if err != nil {
		h.log.Error("failed to search emails",
			zap.String("query", criteria.Query),
			zap.Error(err))
		respondError(c, err)
		return
	}
	Success(c, result)
}

// GetEmail 获取单封邮件详情
// GET /api/emails/:id
func (h *EmailHandler) GetEmail(c *gin.Context) {
	email, err := h.orch.GetEmail(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, email)
}

// categorizeRequest 分类请求体。category 为空时触发 AI 重新分类。
type categorizeRequest struct {
	Category string `json:"category"`
}

// CategorizeEmail 重新分类一封邮件
//
// 不带 category 时对邮件重新执行 AI 分类（结果为 Interested 会触发通知）；
// 带 category 时是手工覆盖，不经过分类后端。
// POST /api/emails/:id/categorize
func (h *EmailHandler) CategorizeEmail(c *gin.Context) {
	var req categorizeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, MsgInvalidRequest)
			return
		}
	}

	var email *domain.Email
	var err error
	if req.Category != "" {
		email, err = h.orch.SetCategory(c.Request.Context(), c.Param("id"), domain.EmailCategory(req.Category))
	} else {
		email, err = h.orch.CategorizeEmail(c.Request.Context(), c.Param("id"))
	}
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, email)
}

// markReadRequest 已读状态请求体，省略时标记为已读
type markReadRequest struct {
	Read *bool `json:"read"`
}

// MarkRead 修改邮件已读状态
// POST /api/emails/:id/read
func (h *EmailHandler) MarkRead(c *gin.Context) {
	req := markReadRequest{}
	// 空请求体等价于 {"read": true}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, MsgInvalidRequest)
			return
		}
	}

	read := true
	if req.Read != nil {
		read = *req.Read
	}

	email, err := h.orch.MarkRead(c.Request.Context(), c.Param("id"), read)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, email)
}

// CategorizeAll 对全部已入库邮件重新执行 AI 分类
// POST /api/emails/categorize-all
func (h *EmailHandler) CategorizeAll(c *gin.Context) {
	processed, err := h.orch.CategorizeAll(c.Request.Context())
	if err != nil {
		h.log.Error("failed to recategorize emails",
			zap.Int("processed", processed),
			zap.Error(err))
		respondError(c, err)
		return
	}

	SuccessWithMsg(c, "重新分类完成", gin.H{"processed": processed})
}

// SuggestReply 为指定邮件生成回复建议
// GET /api/emails/:id/suggest-reply
func (h *EmailHandler) SuggestReply(c *gin.Context) {
	suggestion, err := h.orch.SuggestReply(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, suggestion)
}

// ListCategories 返回全部合法分类
// GET /api/categories
func (h *EmailHandler) ListCategories(c *gin.Context) {
	Success(c, domain.AllCategories())
}

// ListAccounts 返回各账户的同步连接状态
// GET /api/accounts
func (h *EmailHandler) ListAccounts(c *gin.Context) {
	states := h.orch.ConnectionStates()

	accounts := make([]gin.H, 0, len(states))
	for account, state := range states {
		accounts = append(accounts, gin.H{
			"account": account,
			"state":   string(state),
		})
	}
	Success(c, accounts)
}
