package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mailrelay/backend/internal/domain"
	"mailrelay/backend/internal/storage"
)

func newMail(id, from, to string, folder domain.Folder, createdAt time.Time) *domain.Mail {
	return &domain.Mail{
		ID:        id,
		From:      from,
		To:        to,
		Subject:   "test",
		Folder:    folder,
		CreatedAt: createdAt,
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	store := NewStore()

	t.Run("保存并获取邮件", func(t *testing.T) {
		mail := newMail("m1", "a@x.com", "b@y.com", domain.FolderInbox, time.Now())

		err := store.SaveMail(mail)
		assert.NoError(t, err)

		got, err := store.GetMail("m1")
		assert.NoError(t, err)
		assert.Equal(t, "a@x.com", got.From)
		assert.Equal(t, domain.FolderInbox, got.Folder)
	})

	t.Run("获取不存在的邮件", func(t *testing.T) {
		got, err := store.GetMail("nonexistent")

		assert.Nil(t, got)
		assert.ErrorIs(t, err, storage.ErrMailNotFound)
	})

	t.Run("存储保存副本不受外部修改影响", func(t *testing.T) {
		mail := newMail("m2", "a@x.com", "b@y.com", domain.FolderInbox, time.Now())
		_ = store.SaveMail(mail)

		mail.Subject = "mutated"

		got, err := store.GetMail("m2")
		assert.NoError(t, err)
		assert.Equal(t, "test", got.Subject)
	})
}

func TestStore_FolderQueries(t *testing.T) {
	store := NewStore()
	base := time.Now()

	// alice 的收件箱两封、发件箱一封，外加无关记录
	_ = store.SaveMail(newMail("in-1", "bob@y.com", "alice@x.com", domain.FolderInbox, base))
	_ = store.SaveMail(newMail("in-2", "carol@z.com", "alice@x.com", domain.FolderInbox, base.Add(time.Minute)))
	_ = store.SaveMail(newMail("out-1", "alice@x.com", "bob@y.com", domain.FolderSent, base))
	_ = store.SaveMail(newMail("other", "bob@y.com", "carol@z.com", domain.FolderInbox, base))
	_ = store.SaveMail(newMail("trash", "bob@y.com", "alice@x.com", domain.FolderTrash, base))

	t.Run("收件箱按收件人与文件夹过滤", func(t *testing.T) {
		mails, err := store.ListInbox("alice@x.com")

		assert.NoError(t, err)
		assert.Len(t, mails, 2)
		for _, m := range mails {
			assert.Equal(t, "alice@x.com", m.To)
			assert.Equal(t, domain.FolderInbox, m.Folder)
		}
	})

	t.Run("收件箱按创建时间倒序", func(t *testing.T) {
		mails, err := store.ListInbox("alice@x.com")

		assert.NoError(t, err)
		assert.Equal(t, "in-2", mails[0].ID)
		assert.Equal(t, "in-1", mails[1].ID)
	})

	t.Run("发件箱按发件人与文件夹过滤", func(t *testing.T) {
		mails, err := store.ListSent("alice@x.com")

		assert.NoError(t, err)
		assert.Len(t, mails, 1)
		assert.Equal(t, "out-1", mails[0].ID)
	})

	t.Run("无记录时返回空切片", func(t *testing.T) {
		mails, err := store.ListInbox("nobody@x.com")

		assert.NoError(t, err)
		assert.Empty(t, mails)
	})
}

func TestStore_ConcurrentAppend(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			mail := newMail(fmt.Sprintf("m-%d", n), "a@x.com", "b@y.com", domain.FolderInbox, time.Now())
			assert.NoError(t, store.SaveMail(mail))
		}(i)
	}
	wg.Wait()

	mails, err := store.ListInbox("b@y.com")
	assert.NoError(t, err)
	assert.Len(t, mails, 50)
}
