package http

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onebox/backend/internal/reply"
)

func TestListKnowledge(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/knowledge", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []reply.KnowledgeEntry
	resp := decodeResponse(t, w)
	data, _ := json.Marshal(resp.Data)
	require.NoError(t, json.Unmarshal(data, &entries))
	// 知识库自带种子条目
	assert.NotEmpty(t, entries)
}

func TestAddKnowledge(t *testing.T) {
	router, _ := newTestRouter(t)

	t.Run("新增条目成功", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/knowledge",
			gin.H{"text": "Pricing starts at 49 dollars per month.", "type": "product", "category": "pricing"})
		require.Equal(t, http.StatusCreated, w.Code)

		var entry reply.KnowledgeEntry
		resp := decodeResponse(t, w)
		data, _ := json.Marshal(resp.Data)
		require.NoError(t, json.Unmarshal(data, &entry))
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, reply.EntryTypeProduct, entry.Type)
	})

	t.Run("类型省略时默认为模板", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/knowledge",
			gin.H{"text": "Always thank the sender."})
		require.Equal(t, http.StatusCreated, w.Code)

		var entry reply.KnowledgeEntry
		resp := decodeResponse(t, w)
		data, _ := json.Marshal(resp.Data)
		require.NoError(t, json.Unmarshal(data, &entry))
		assert.Equal(t, reply.EntryTypeTemplate, entry.Type)
	})

	t.Run("缺少内容报错", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/knowledge", gin.H{"type": "product"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("非法类型报错", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/knowledge",
			gin.H{"text": "something", "type": "faq"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
