package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"mailrelay/backend/internal/domain"
	"mailrelay/backend/internal/mailaddr"
	"mailrelay/backend/internal/monitoring"
	"mailrelay/backend/internal/provider"
	"mailrelay/backend/internal/storage"
)

// SendStatus 表示一次发件请求的结果状态。
type SendStatus string

const (
	// StatusSent 已由某个传输候选实际投递。
	StatusSent SendStatus = "sent"
	// StatusSaved 已入库但未投递（传输选择失败或投递失败）。
	StatusSaved SendStatus = "saved"
)

// 入站来源标识，用于日志与指标。
const (
	SourceSMTP    = "smtp"
	SourceWebhook = "webhook"
)

// MailService 封装邮件的入库与投递逻辑。
type MailService struct {
	store    storage.Store
	resolver provider.Resolver
	logger   *zap.Logger
	metrics  *monitoring.Metrics // 可选
}

// NewMailService 创建邮件业务服务。
func NewMailService(store storage.Store, resolver provider.Resolver, logger *zap.Logger) *MailService {
	return &MailService{
		store:    store,
		resolver: resolver,
		logger:   logger,
	}
}

// SetMetrics 设置中继指标（可选）。
func (s *MailService) SetMetrics(m *monitoring.Metrics) {
	s.metrics = m
}

// InboundMailInput 定义入站邮件的输入。
//
// SMTP 与 Webhook 两条收件路径都走这里，地址头的显示名拆分只在此处做一次，
// 避免两条路径各自解析产生行为漂移。
type InboundMailInput struct {
	From    string // 原始发件地址头，可含显示名
	To      string // 收件人文本表示（多收件人保留拼接形式）
	Subject string
	Text    string
	HTML    string
	Source  string // SourceSMTP 或 SourceWebhook
}

// CreateInbound 为一封已接收的邮件创建收件箱记录。
func (s *MailService) CreateInbound(input InboundMailInput) (*domain.Mail, error) {
	fromAddr, fromName := mailaddr.Split(input.From)
	// 多收件人的拼接形式原样保留，单收件人才拆显示名
	toAddr, toName := mailaddr.SplitRecipient(input.To)

	subject := input.Subject
	if subject == "" {
		subject = domain.DefaultSubject
	}

	mail := &domain.Mail{
		ID:        uuid.NewString(),
		From:      fromAddr,
		FromName:  fromName,
		To:        toAddr,
		ToName:    toName,
		Subject:   subject,
		Text:      input.Text,
		HTML:      input.HTML,
		IsRead:    false,
		Folder:    domain.FolderInbox,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.SaveMail(mail); err != nil {
		return nil, fmt.Errorf("save inbound mail: %w", err)
	}

	if s.metrics != nil {
		s.metrics.MailIngested.WithLabelValues(input.Source).Inc()
	}

	s.logger.Info("inbound mail stored",
		zap.String("id", mail.ID),
		zap.String("from", mail.From),
		zap.String("to", mail.To),
		zap.String("source", input.Source),
	)

	return mail, nil
}

// SendInput 定义发件请求的输入。
//
// 发件人身份由外部（认证层）解析后传入，本服务不做身份校验。
type SendInput struct {
	SenderAddress string
	SenderName    string
	To            string
	Subject       string
	Text          string
	HTML          string
}

// SendResult 是发件请求的显式结果。
//
// 投递失败不是错误路径：记录已入库即视为请求成功，
// Status 区分实际投递与仅入库两种结局。
type SendResult struct {
	Status SendStatus `json:"status"`
	// ID 在投递成功时为 Message-ID，否则为已入库记录的 ID。
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

// Send 发送一封邮件。
//
// 第一步无条件先入库（folder=sent），入库失败才是请求级错误；
// 之后的传输选择与投递失败一律吸收为 StatusSaved 结果，不向调用方传播。
func (s *MailService) Send(input SendInput) (*SendResult, error) {
	subject := input.Subject
	if subject == "" {
		subject = domain.DefaultSubject
	}

	mail := &domain.Mail{
		ID:        uuid.NewString(),
		From:      input.SenderAddress,
		FromName:  input.SenderName,
		To:        input.To,
		Subject:   subject,
		Text:      input.Text,
		HTML:      input.HTML,
		IsRead:    true,
		Folder:    domain.FolderSent,
		CreatedAt: time.Now().UTC(),
	}

	// 持久化是耐久性边界：没有入库记录，后面什么都不做。
	if err := s.store.SaveMail(mail); err != nil {
		return nil, fmt.Errorf("persist outbound mail: %w", err)
	}

	sender, err := s.resolver.Resolve()
	if err != nil {
		s.logger.Warn("no usable outbound transport, mail saved only",
			zap.String("id", mail.ID),
			zap.Error(err),
		)
		return s.savedOnly(mail, err), nil
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), addressDomain(input.SenderAddress))
	msg := s.buildMessage(mail, messageID)

	if err := sender.Send(msg); err != nil {
		s.logger.Warn("outbound delivery failed, mail saved only",
			zap.String("id", mail.ID),
			zap.String("transport", sender.Name()),
			zap.Error(err),
		)
		return s.savedOnly(mail, err), nil
	}

	if s.metrics != nil {
		s.metrics.MailDelivered.Inc()
	}

	s.logger.Info("outbound mail delivered",
		zap.String("id", mail.ID),
		zap.String("transport", sender.Name()),
		zap.String("message_id", messageID),
	)

	return &SendResult{
		Status: StatusSent,
		ID:     messageID,
	}, nil
}

// Get 获取单封邮件。
func (s *MailService) Get(id string) (*domain.Mail, error) {
	return s.store.GetMail(id)
}

// ListInbox 列出指定地址的收件箱邮件。
func (s *MailService) ListInbox(owner string) ([]domain.Mail, error) {
	return s.store.ListInbox(owner)
}

// ListSent 列出指定地址的已发送邮件。
func (s *MailService) ListSent(owner string) ([]domain.Mail, error) {
	return s.store.ListSent(owner)
}

func (s *MailService) savedOnly(mail *domain.Mail, cause error) *SendResult {
	if s.metrics != nil {
		s.metrics.MailSavedOnly.Inc()
	}
	return &SendResult{
		Status: StatusSaved,
		ID:     mail.ID,
		Reason: cause.Error(),
	}
}

func (s *MailService) buildMessage(mail *domain.Mail, messageID string) *gomail.Message {
	msg := gomail.NewMessage()
	if mail.FromName != "" {
		msg.SetHeader("From", msg.FormatAddress(mail.From, mail.FromName))
	} else {
		msg.SetHeader("From", mail.From)
	}
	msg.SetHeader("To", mail.To)
	msg.SetHeader("Subject", mail.Subject)
	msg.SetHeader("Message-Id", messageID)

	switch {
	case mail.Text != "" && mail.HTML != "":
		msg.SetBody("text/plain", mail.Text)
		msg.AddAlternative("text/html", mail.HTML)
	case mail.HTML != "":
		msg.SetBody("text/html", mail.HTML)
	default:
		msg.SetBody("text/plain", mail.Text)
	}

	return msg
}

// addressDomain 取地址的域名部分，用于生成 Message-ID。
func addressDomain(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 && i < len(address)-1 {
		return address[i+1:]
	}
	return "localhost"
}
