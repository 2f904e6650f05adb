package http

import (
	"errors"

	"github.com/gin-gonic/gin"

	"onebox/backend/internal/domain"
	"onebox/backend/internal/storage"
)

// 错误消息常量
const (
	MsgEmailNotFound      = "邮件不存在"
	MsgInvalidCategory    = "邮件分类无效"
	MsgInvalidRequest     = "请求参数错误"
	MsgInvalidPagination  = "分页参数错误"
	MsgEmptySearchQuery   = "搜索关键词不能为空"
	MsgKnowledgeTextEmpty = "知识条目内容不能为空"
	MsgInternalError      = "服务器内部错误"
)

// errInvalidPagination 分页参数不合法
var errInvalidPagination = errors.New("invalid pagination parameters")

// errorMessages 业务错误到用户可见消息的映射
var errorMessages = map[error]string{
	storage.ErrEmailNotFound:  MsgEmailNotFound,
	domain.ErrInvalidCategory: MsgInvalidCategory,
	errInvalidPagination:      MsgInvalidPagination,
}

// GetErrorMessage 获取错误对应的用户友好消息
func GetErrorMessage(err error) string {
	for sentinel, msg := range errorMessages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return MsgInternalError
}

// respondError 根据业务错误类型返回对应的 HTTP 响应
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrEmailNotFound):
		NotFound(c, MsgEmailNotFound)
	case errors.Is(err, domain.ErrInvalidCategory):
		BadRequest(c, MsgInvalidCategory)
	default:
		InternalError(c, MsgInternalError)
	}
}
