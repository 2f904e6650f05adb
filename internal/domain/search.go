package domain

// EmailSearchCriteria 邮件搜索条件。
type EmailSearchCriteria struct {
	Account  string        // 账户筛选（可选）
	Folder   string        // 文件夹筛选（可选）
	Category EmailCategory // 分类筛选（可选）
	Query    string        // 关键词（匹配主题、正文、发件人，主题权重更高）
	Page     int           // 页码（默认1）
	PageSize int           // 每页数量（默认20，最大100）
}

// Normalize 填充默认分页参数。
func (c *EmailSearchCriteria) Normalize() {
	if c.Page <= 0 {
		c.Page = 1
	}
	if c.PageSize <= 0 {
		c.PageSize = 20
	}
	if c.PageSize > 100 {
		c.PageSize = 100
	}
}

// EmailSearchResult 邮件搜索结果，按 Date 倒序排列。
type EmailSearchResult struct {
	Emails     []Email `json:"emails"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalPages int     `json:"totalPages"`
}
