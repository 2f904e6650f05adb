package imapsync

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"onebox/backend/internal/domain"
)

// noSubjectPlaceholder 缺失主题时的占位值
const noSubjectPlaceholder = "(No Subject)"

// ParseMessage 将一封原始 RFC 822 邮件解析为规范化的 Email。
//
// 解析尽量宽容：缺失主题用占位值，缺失日期用当前时间，
// 缺失 Message-ID 用内容哈希兜底，保证去重键在重启后仍然稳定。
// 只有整封邮件完全无法读取时才返回错误。
func ParseMessage(raw []byte, account, folder string) (*domain.Email, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	defer mr.Close()

	email := &domain.Email{
		ID:       uuid.NewString(),
		Account:  account,
		Folder:   folder,
		Category: domain.CategoryUncategorized,
	}

	subject, _ := mr.Header.Subject()
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = noSubjectPlaceholder
	}
	email.Subject = subject

	date, err := mr.Header.Date()
	if err != nil || date.IsZero() {
		date = time.Now().UTC()
	}
	email.Date = date.UTC()

	if fromList, err := mr.Header.AddressList("From"); err == nil && len(fromList) > 0 {
		email.From = domain.EmailAddress{
			Name:    fromList[0].Name,
			Address: strings.ToLower(fromList[0].Address),
		}
	}

	if toList, err := mr.Header.AddressList("To"); err == nil {
		for _, addr := range toList {
			email.To = append(email.To, domain.EmailAddress{
				Name:    addr.Name,
				Address: strings.ToLower(addr.Address),
			})
		}
	}

	body, bodyHTML, attachments := readParts(mr)
	email.Body = body
	email.BodyHTML = bodyHTML
	email.Attachments = attachments

	// 纯 HTML 邮件退化出一份可搜索的文本正文
	if email.Body == "" && email.BodyHTML != "" {
		email.Body = stripTags(email.BodyHTML)
	}

	messageID, err := mr.Header.MessageID()
	if err != nil || messageID == "" {
		messageID = contentHashID(email)
	}
	email.MessageID = messageID

	now := time.Now().UTC()
	email.CreatedAt = now
	email.UpdatedAt = now

	return email, nil
}

// readParts 遍历 MIME 结构，提取文本正文、HTML 正文和附件元数据。
func readParts(mr *mail.Reader) (body, bodyHTML string, attachments []domain.Attachment) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			data, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				if body == "" {
					body = string(data)
				}
			case strings.HasPrefix(contentType, "text/html"):
				if bodyHTML == "" {
					bodyHTML = string(data)
				}
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()

			// 只记录元数据，不保存附件内容
			size, readErr := io.Copy(io.Discard, part.Body)
			if readErr != nil {
				continue
			}

			attachments = append(attachments, domain.Attachment{
				Filename:    filename,
				ContentType: contentType,
				Size:        size,
			})
		}
	}

	return body, bodyHTML, attachments
}

// contentHashID 为缺失 Message-ID 的邮件生成稳定的替代标识。
// 哈希输入只包含邮件自身的不可变内容，同一封邮件在重启后得到相同标识。
func contentHashID(email *domain.Email) string {
	bodyPrefix := email.Body
	if len(bodyPrefix) > 256 {
		bodyPrefix = bodyPrefix[:256]
	}

	sum := sha256.Sum256([]byte(strings.Join([]string{
		email.Account,
		email.From.Address,
		email.Subject,
		email.Date.UTC().Format(time.RFC3339),
		bodyPrefix,
	}, "\x00")))

	return fmt.Sprintf("<sha256-%x@onebox.local>", sum[:16])
}

// stripTags 将 HTML 粗略转为纯文本，仅用于搜索和分类的退化正文。
func stripTags(html string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			sb.WriteRune(' ')
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
