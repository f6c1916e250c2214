package memory

import (
	"sort"
	"sync"

	"mailrelay/backend/internal/domain"
	"mailrelay/backend/internal/storage"
)

// Store 使用内存保存邮件数据，主要用于开发验证与测试。
type Store struct {
	mu    sync.RWMutex
	mails map[string]*domain.Mail
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		mails: make(map[string]*domain.Mail),
	}
}

// SaveMail 保存一封邮件。
func (s *Store) SaveMail(mail *domain.Mail) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *mail
	s.mails[mail.ID] = &stored
	return nil
}

// GetMail 根据 ID 获取邮件。
func (s *Store) GetMail(id string) (*domain.Mail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mail, ok := s.mails[id]
	if !ok {
		return nil, storage.ErrMailNotFound
	}
	copied := *mail
	return &copied, nil
}

// ListInbox 列出收件箱邮件，按创建时间倒序。
func (s *Store) ListInbox(owner string) ([]domain.Mail, error) {
	return s.listBy(func(m *domain.Mail) bool {
		return m.To == owner && m.Folder == domain.FolderInbox
	}), nil
}

// ListSent 列出已发送邮件，按创建时间倒序。
func (s *Store) ListSent(owner string) ([]domain.Mail, error) {
	return s.listBy(func(m *domain.Mail) bool {
		return m.From == owner && m.Folder == domain.FolderSent
	}), nil
}

func (s *Store) listBy(match func(*domain.Mail) bool) []domain.Mail {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Mail, 0)
	for _, m := range s.mails {
		if match(m) {
			result = append(result, *m)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Close 关闭存储（内存实现为空操作）。
func (s *Store) Close() error {
	return nil
}

// Health 检查存储健康状态（内存实现恒为健康）。
func (s *Store) Health() error {
	return nil
}
