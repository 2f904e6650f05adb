package imapsync

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onebox/backend/internal/domain"
)

const plainMessage = "From: Alice Smith <Alice@Example.com>\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Quarterly review\r\n" +
	"Date: Mon, 02 Mar 2026 10:30:00 +0000\r\n" +
	"Message-ID: <abc123@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Hi Bob, are you free next Tuesday?\r\n"

const multipartMessage = "From: carol@example.com\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Proposal attached\r\n" +
	"Date: Tue, 03 Mar 2026 09:00:00 +0000\r\n" +
	"Message-ID: <def456@example.com>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please find the proposal attached.\r\n" +
	"--outer\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Please find the <b>proposal</b> attached.</p>\r\n" +
	"--outer\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"proposal.pdf\"\r\n" +
	"\r\n" +
	"%PDF-1.4 fake content\r\n" +
	"--outer--\r\n"

const bareMessage = "From: noreply@example.com\r\n" +
	"To: bob@example.com\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Automated notification.\r\n"

const htmlOnlyMessage = "From: news@example.com\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Newsletter\r\n" +
	"Message-ID: <news789@example.com>\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><body><h1>Hello</h1><p>This week in Go.</p></body></html>\r\n"

func TestParseMessage_Plain(t *testing.T) {
	email, err := ParseMessage([]byte(plainMessage), "bob@example.com", "INBOX")
	require.NoError(t, err)

	assert.NotEmpty(t, email.ID)
	assert.Equal(t, "<abc123@example.com>", email.MessageID)
	assert.Equal(t, "bob@example.com", email.Account)
	assert.Equal(t, "INBOX", email.Folder)
	assert.Equal(t, "Quarterly review", email.Subject)
	assert.Equal(t, "Alice Smith", email.From.Name)
	// 地址统一小写
	assert.Equal(t, "alice@example.com", email.From.Address)
	require.Len(t, email.To, 1)
	assert.Equal(t, "bob@example.com", email.To[0].Address)
	assert.Contains(t, email.Body, "free next Tuesday")
	assert.Equal(t, time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC), email.Date)
	assert.Equal(t, domain.CategoryUncategorized, email.Category)
}

func TestParseMessage_Multipart(t *testing.T) {
	email, err := ParseMessage([]byte(multipartMessage), "bob@example.com", "INBOX")
	require.NoError(t, err)

	assert.Contains(t, email.Body, "proposal attached")
	assert.Contains(t, email.BodyHTML, "<b>proposal</b>")

	require.Len(t, email.Attachments, 1)
	assert.Equal(t, "proposal.pdf", email.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", email.Attachments[0].ContentType)
	assert.Greater(t, email.Attachments[0].Size, int64(0))
}

func TestParseMessage_MissingHeaders(t *testing.T) {
	email, err := ParseMessage([]byte(bareMessage), "bob@example.com", "INBOX")
	require.NoError(t, err)

	// 缺失主题用占位值，缺失日期兜底为当前时间
	assert.Equal(t, "(No Subject)", email.Subject)
	assert.WithinDuration(t, time.Now().UTC(), email.Date, time.Minute)

	// 缺失 Message-ID 用内容哈希兜底
	assert.True(t, strings.HasPrefix(email.MessageID, "<sha256-"), "got %q", email.MessageID)

	// 同一封邮件再次解析得到相同的替代标识
	again, err := ParseMessage([]byte(bareMessage), "bob@example.com", "INBOX")
	require.NoError(t, err)
	assert.Equal(t, email.MessageID, again.MessageID)
}

func TestParseMessage_HashIncludesAccount(t *testing.T) {
	first, err := ParseMessage([]byte(bareMessage), "bob@example.com", "INBOX")
	require.NoError(t, err)

	second, err := ParseMessage([]byte(bareMessage), "carol@example.com", "INBOX")
	require.NoError(t, err)

	// 不同账户下的替代标识互不相同
	assert.NotEqual(t, first.MessageID, second.MessageID)
}

func TestParseMessage_HTMLOnly(t *testing.T) {
	email, err := ParseMessage([]byte(htmlOnlyMessage), "bob@example.com", "INBOX")
	require.NoError(t, err)

	assert.Contains(t, email.BodyHTML, "<h1>Hello</h1>")
	// 纯 HTML 邮件退化出纯文本正文
	assert.Contains(t, email.Body, "This week in Go")
	assert.NotContains(t, email.Body, "<p>")
}

func TestParseMessage_Garbage(t *testing.T) {
	_, err := ParseMessage([]byte("\x00\x01\x02"), "bob@example.com", "INBOX")
	assert.Error(t, err)
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Hello This week in Go .",
		stripTags("<html><body><h1>Hello</h1><p>This   week in <i>Go</i>.</p></body></html>"))
}
