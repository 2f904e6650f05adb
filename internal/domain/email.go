package domain

import (
	"errors"
	"time"
)

// ErrInvalidCategory 分类不在闭集内
var ErrInvalidCategory = errors.New("invalid email category")

// EmailCategory 邮件分类标签（闭集）。
type EmailCategory string

const (
	CategoryInterested    EmailCategory = "Interested"     // 对方表达了兴趣
	CategoryMeetingBooked EmailCategory = "Meeting Booked" // 已确认或预约会议
	CategoryNotInterested EmailCategory = "Not Interested" // 明确拒绝或无兴趣
	CategorySpam          EmailCategory = "Spam"           // 垃圾/推广邮件
	CategoryOutOfOffice   EmailCategory = "Out of Office"  // 自动外出回复
	CategoryUncategorized EmailCategory = "Uncategorized"  // 未分类（默认值）
)

// AllCategories 返回全部合法分类，顺序固定。
func AllCategories() []EmailCategory {
	return []EmailCategory{
		CategoryInterested,
		CategoryMeetingBooked,
		CategoryNotInterested,
		CategorySpam,
		CategoryOutOfOffice,
		CategoryUncategorized,
	}
}

// IsValid 判断分类是否属于闭集。
func (c EmailCategory) IsValid() bool {
	switch c {
	case CategoryInterested, CategoryMeetingBooked, CategoryNotInterested,
		CategorySpam, CategoryOutOfOffice, CategoryUncategorized:
		return true
	}
	return false
}

// EmailAddress 表示一个邮件地址（显示名可选）。
type EmailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// Attachment 附件元数据，不保存附件内容。
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Email 表示一封已同步入库的邮件。
//
// 去重键为 (MessageID, Account)：同一账户下同一条协议消息最多入库一次。
// 入库后除 Category、Read、UpdatedAt 外其余字段视为不可变。
type Email struct {
	ID          string         `json:"id" gorm:"primaryKey;type:varchar(64)"`
	MessageID   string         `json:"messageId" gorm:"type:varchar(512);uniqueIndex:idx_emails_dedup,priority:1;not null"`
	Account     string         `json:"account" gorm:"type:varchar(255);uniqueIndex:idx_emails_dedup,priority:2;index;not null"`
	Folder      string         `json:"folder" gorm:"type:varchar(255);index"`
	From        EmailAddress   `json:"from" gorm:"serializer:json;type:json"`
	To          []EmailAddress `json:"to" gorm:"serializer:json;type:json"`
	Subject     string         `json:"subject" gorm:"type:varchar(1000)"`
	Body        string         `json:"body" gorm:"type:text"`
	BodyHTML    string         `json:"bodyHtml,omitempty" gorm:"type:text"`
	Date        time.Time      `json:"date" gorm:"index"`
	Category    EmailCategory  `json:"category" gorm:"type:varchar(32);index;default:Uncategorized"`
	Read        bool           `json:"read" gorm:"default:false"`
	Attachments []Attachment   `json:"attachments" gorm:"serializer:json;type:json"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// TableName 指定 GORM 表名。
func (Email) TableName() string {
	return "emails"
}

// EmailUpdate 部分更新邮件时允许修改的字段。
// nil 表示不修改对应字段；UpdatedAt 由存储层统一刷新。
type EmailUpdate struct {
	Category *EmailCategory
	Read     *bool
}
