package sql

import (
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mailrelay/backend/internal/domain"
	"mailrelay/backend/internal/storage"
)

// Store SQL 数据库存储实现（支持 MySQL 5.7+ 和 PostgreSQL）
type Store struct {
	db         *gorm.DB
	driverName string // "mysql" or "postgres"
}

// NewStore 创建 SQL 数据库存储
func NewStore(
	driverName string,
	dsn string,
	maxOpenConns int,
	maxIdleConns int,
	connMaxLifetime time.Duration,
) (*Store, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var db *gorm.DB
	var err error
	switch driverName {
	case "mysql":
		db, err = gorm.Open(mysql.Open(dsn), gormConfig)
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", driverName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 设置连接池参数
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{
		db:         db,
		driverName: driverName,
	}

	// 自动执行数据库迁移
	if err := db.AutoMigrate(&domain.Mail{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// SaveMail 保存一封邮件。
func (s *Store) SaveMail(mail *domain.Mail) error {
	if err := s.db.Create(mail).Error; err != nil {
		return fmt.Errorf("save mail: %w", err)
	}
	return nil
}

// GetMail 根据 ID 获取邮件。
func (s *Store) GetMail(id string) (*domain.Mail, error) {
	var mail domain.Mail
	if err := s.db.First(&mail, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrMailNotFound
		}
		return nil, fmt.Errorf("get mail: %w", err)
	}
	return &mail, nil
}

// ListInbox 列出收件箱邮件，按创建时间倒序。
func (s *Store) ListInbox(owner string) ([]domain.Mail, error) {
	var mails []domain.Mail
	err := s.db.
		Where("to_address = ? AND folder = ?", owner, domain.FolderInbox).
		Order("created_at DESC").
		Find(&mails).Error
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	return mails, nil
}

// ListSent 列出已发送邮件，按创建时间倒序。
func (s *Store) ListSent(owner string) ([]domain.Mail, error) {
	var mails []domain.Mail
	err := s.db.
		Where("from_address = ? AND folder = ?", owner, domain.FolderSent).
		Order("created_at DESC").
		Find(&mails).Error
	if err != nil {
		return nil, fmt.Errorf("list sent: %w", err)
	}
	return mails, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
