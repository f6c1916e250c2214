package storage

import (
	"errors"

	"mailrelay/backend/internal/domain"
)

var (
	// ErrMailNotFound 邮件未找到错误
	ErrMailNotFound = errors.New("mail not found")
)

// MailRepository 定义邮件数据存取操作。
//
// 三个入口（SMTP 接收、Webhook 接收、发件接口）并发写入同一存储，
// 但都只做追加，记录本身入库后不可变，因此接口不提供更新操作。
type MailRepository interface {
	SaveMail(mail *domain.Mail) error
	GetMail(id string) (*domain.Mail, error)
	// ListInbox 按收件人列出收件箱邮件（to = owner 且 folder = inbox），按创建时间倒序。
	ListInbox(owner string) ([]domain.Mail, error)
	// ListSent 按发件人列出已发送邮件（from = owner 且 folder = sent），按创建时间倒序。
	ListSent(owner string) ([]domain.Mail, error)
}

// Store 定义完整的存储接口。
type Store interface {
	MailRepository

	Close() error
	Health() error
}
