package domain

import "time"

// Folder 表示邮件所属的文件夹分类。
type Folder string

const (
	FolderInbox Folder = "inbox"
	FolderSent  Folder = "sent"
	FolderTrash Folder = "trash"
)

// DefaultSubject 是缺省主题的占位值。
const DefaultSubject = "(No Subject)"

// Mail 表示一封已入库的邮件，收件与发件两条路径共用同一结构。
//
// From/To 始终存裸地址，显示名单独存放在 FromName/ToName 中。
// from/to 是 SQL 保留字，列名改用 from_address/to_address。
type Mail struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	From      string    `json:"from" gorm:"column:from_address;type:varchar(255);index;not null"`
	FromName  string    `json:"fromName,omitempty" gorm:"type:varchar(255)"`
	To        string    `json:"to" gorm:"column:to_address;type:varchar(255);index;not null"`
	ToName    string    `json:"toName,omitempty" gorm:"type:varchar(255)"` // 暂未被下游使用
	Subject   string    `json:"subject" gorm:"type:varchar(500)"`
	Text      string    `json:"text,omitempty" gorm:"type:text"`
	HTML      string    `json:"html,omitempty" gorm:"type:text"`
	IsRead    bool      `json:"isRead" gorm:"default:false"`
	Folder    Folder    `json:"folder" gorm:"type:varchar(16);index;default:inbox"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName 指定 GORM 表名。
func (Mail) TableName() string {
	return "mails"
}
