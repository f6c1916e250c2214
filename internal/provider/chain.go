// Package provider 实现出站邮件传输的候选链选择。
//
// 候选按固定优先级求值，配置齐全的第一个候选生效，候选之间永不合并。
// 选择是对配置快照的纯函数：不做 I/O，不保留调用间状态，每次发信重新求值，
// 并发求值是安全的。
package provider

import (
	"crypto/tls"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

// ErrNotConfigured 表示生产部署下没有任何可用的出站传输候选。
var ErrNotConfigured = errors.New("no outbound mail provider configured")

// 本地回环传输仅用于开发环境，生产部署禁止回退到它。
const (
	loopbackHost = "localhost"
	loopbackPort = 2525

	sendgridHost = "smtp.sendgrid.net"
	sendgridPort = 587
	gmailHost    = "smtp.gmail.com"
	gmailPort    = 587
)

// Config 是出站传输候选的配置快照。
//
// 显式传入快照而非在选择时读环境变量，保证选择可测试、可复现。
type Config struct {
	SendGridAPIKey   string
	SendGridUsername string
	SendGridPassword string
	MailgunServer    string
	MailgunPort      int
	MailgunLogin     string
	MailgunPassword  string
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPass         string
	SMTPSecure       bool
	SMTPInsecureTLS  bool
	GmailUser        string
	GmailPassword    string
	Production       bool // 生产部署标志，决定是否允许回环回退
}

// Sender 是一个可用的出站传输句柄。
type Sender interface {
	Name() string
	Send(m *gomail.Message) error
}

// Resolver 按当前配置选择一个出站传输。
type Resolver interface {
	Resolve() (Sender, error)
}

// Transport 基于 gomail 拨号器实现 Sender。
type Transport struct {
	name   string
	dialer *gomail.Dialer
}

// Name 返回传输候选的名称。
func (t *Transport) Name() string {
	return t.name
}

// Send 建立连接并投递一封邮件。
func (t *Transport) Send(m *gomail.Message) error {
	return t.dialer.DialAndSend(m)
}

// Chain 持有配置快照并实现 Resolver。
type Chain struct {
	cfg Config
}

// NewChain 创建出站传输候选链。
func NewChain(cfg Config) *Chain {
	return &Chain{cfg: cfg}
}

// Resolve 按优先级选出第一个配置齐全的传输候选。
//
// 优先级（严格顺序）：
//  1. SendGrid API Key
//  2. SendGrid 用户名/密码
//  3. Mailgun 服务器/登录名/密码
//  4. 通用 SMTP（主机 + 端口，可选认证与 TLS 放宽）
//  5. Gmail 用户/应用密码
//  6. 本地回环（仅限非生产部署）
//
// 生产部署下候选 1–5 均未配置时返回 ErrNotConfigured，绝不静默回退到回环。
func (c *Chain) Resolve() (Sender, error) {
	cfg := c.cfg

	if cfg.SendGridAPIKey != "" {
		return &Transport{
			name:   "sendgrid-apikey",
			dialer: gomail.NewDialer(sendgridHost, sendgridPort, "apikey", cfg.SendGridAPIKey),
		}, nil
	}

	if cfg.SendGridUsername != "" && cfg.SendGridPassword != "" {
		return &Transport{
			name:   "sendgrid",
			dialer: gomail.NewDialer(sendgridHost, sendgridPort, cfg.SendGridUsername, cfg.SendGridPassword),
		}, nil
	}

	if cfg.MailgunServer != "" && cfg.MailgunLogin != "" && cfg.MailgunPassword != "" {
		port := cfg.MailgunPort
		if port == 0 {
			port = 587
		}
		return &Transport{
			name:   "mailgun",
			dialer: gomail.NewDialer(cfg.MailgunServer, port, cfg.MailgunLogin, cfg.MailgunPassword),
		}, nil
	}

	if cfg.SMTPHost != "" && cfg.SMTPPort != 0 {
		dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
		dialer.SSL = cfg.SMTPSecure
		if cfg.SMTPInsecureTLS {
			dialer.TLSConfig = &tls.Config{
				ServerName:         cfg.SMTPHost,
				InsecureSkipVerify: true,
			}
		}
		return &Transport{
			name:   "smtp",
			dialer: dialer,
		}, nil
	}

	if cfg.GmailUser != "" && cfg.GmailPassword != "" {
		return &Transport{
			name:   "gmail",
			dialer: gomail.NewDialer(gmailHost, gmailPort, cfg.GmailUser, cfg.GmailPassword),
		}, nil
	}

	if cfg.Production {
		return nil, fmt.Errorf("%w: configure SendGrid, Mailgun, Gmail or generic SMTP credentials", ErrNotConfigured)
	}

	dialer := gomail.NewDialer(loopbackHost, loopbackPort, "", "")
	dialer.TLSConfig = &tls.Config{
		ServerName:         loopbackHost,
		InsecureSkipVerify: true,
	}
	return &Transport{
		name:   "loopback",
		dialer: dialer,
	}, nil
}
