package smtp

import (
	"io"
	"strings"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"mailrelay/backend/internal/monitoring"
	"mailrelay/backend/internal/service"
)

// Backend 实现 go-smtp 的 Backend 接口。
//
// 这是中继的 SMTP 收件入口：接受匿名会话（认证可选是刻意的简化，
// 不是安全立场，部署文档需标注此已知缺口），DATA 阶段结束后解析
// 完整 MIME 内容并落一条收件箱记录。
//
// 解析失败会在协议层拒绝会话；入库失败则只记日志，会话照常完成，
// 偏向发件方体验而非投递保证。
type Backend struct {
	mails           *service.MailService
	logger          *zap.Logger
	limiter         *ConnectionLimiter
	metrics         *monitoring.Metrics // 可选
	maxMessageBytes int64
}

// NewBackend 创建 SMTP Backend。
func NewBackend(mails *service.MailService, logger *zap.Logger, limiter *ConnectionLimiter, maxMessageBytes int64) *Backend {
	if maxMessageBytes <= 0 {
		maxMessageBytes = 10 << 20
	}
	return &Backend{
		mails:           mails,
		logger:          logger,
		limiter:         limiter,
		maxMessageBytes: maxMessageBytes,
	}
}

// SetMetrics 设置中继指标（可选）。
func (b *Backend) SetMetrics(m *monitoring.Metrics) {
	b.metrics = m
}

// NewSession 创建新的 SMTP 会话。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	if b.limiter != nil && !b.limiter.Acquire() {
		return nil, &gosmtp.SMTPError{
			Code:         421,
			EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
			Message:      "too many connections, try again later",
		}
	}
	return &session{backend: b}, nil
}

type session struct {
	backend      *Backend
	envelopeFrom string
	recipients   []string
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, _ *gosmtp.MailOptions) error {
	s.envelopeFrom = normalizeAddress(from)
	return nil
}

// Rcpt 处理 RCPT 命令。
//
// 中继代表单一收件方接收外部投递，不做收件人存在性校验，
// 所有收件人一律接受。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	s.recipients = append(s.recipients, normalizeAddress(to))
	return nil
}

// Data 处理邮件内容。
func (s *session) Data(r io.Reader) error {
	raw, err := io.ReadAll(io.LimitReader(r, s.backend.maxMessageBytes))
	if err != nil {
		return err
	}

	parsed, err := ParseMail(raw)
	if err != nil {
		s.backend.logger.Warn("rejecting message: MIME parse failed", zap.Error(err))
		if s.backend.metrics != nil {
			s.backend.metrics.InboundRejected.WithLabelValues("parse").Inc()
		}
		return &gosmtp.SMTPError{
			Code:         554,
			EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
			Message:      "message content rejected: unparseable message",
		}
	}

	from := parsed.From
	if from == "" {
		from = s.envelopeFrom
	}
	to := parsed.To
	if to == "" {
		// To 头缺失时退回信封收件人的拼接形式
		to = strings.Join(s.recipients, ", ")
	}

	_, err = s.backend.mails.CreateInbound(service.InboundMailInput{
		From:    from,
		To:      to,
		Subject: parsed.Subject,
		Text:    parsed.Text,
		HTML:    parsed.HTML,
		Source:  service.SourceSMTP,
	})
	if err != nil {
		// 接受后尽力入库：存储故障不反映给发件方，会话照常完成
		s.backend.logger.Error("failed to store inbound mail, accepting anyway",
			zap.String("from", from),
			zap.String("to", to),
			zap.Error(err),
		)
		if s.backend.metrics != nil {
			s.backend.metrics.InboundStoreFailures.Inc()
		}
	}

	return nil
}

// AuthPlain 处理 PLAIN 认证（此处允许匿名）。
func (s *session) AuthPlain(username, password string) error {
	return nil
}

// Reset 重置状态。
func (s *session) Reset() {
	s.envelopeFrom = ""
	s.recipients = nil
}

// Logout 会话结束。
func (s *session) Logout() error {
	if s.backend.limiter != nil {
		s.backend.limiter.Release()
	}
	return nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.Trim(addr, "<>")
	return strings.ToLower(addr)
}
