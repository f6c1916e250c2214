package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// SMTPConfig 定义 SMTP 邮件接收服务器的配置
type SMTPConfig struct {
	BindAddr        string // SMTP 服务监听地址，格式 "host:port"，默认 ":587"
	Domain          string // SMTP 服务器域名，用于 HELO/EHLO 响应
	MaxMessageBytes int64  // 单封邮件最大字节数，默认 10MB
	MaxConns        int    // 最大并发连接数，默认 64
	MaxConnRate     int    // 每秒最大新建连接数，默认 16
}

// OutboundConfig 定义发件身份配置
//
// 发件人身份由外部（认证层）解析后传入，这里只提供中继自身的缺省身份，
// 供未显式指定发件人的请求使用。
type OutboundConfig struct {
	SenderAddress string // 缺省发件地址
	SenderName    string // 缺省发件显示名
}

// ProvidersConfig 定义出站邮件传输候选配置
//
// 候选按固定优先级求值，配置齐全的第一个候选生效，详见 provider 包。
type ProvidersConfig struct {
	SendGridAPIKey   string // 候选 1：SendGrid API Key
	SendGridUsername string // 候选 2：SendGrid 用户名
	SendGridPassword string // 候选 2：SendGrid 密码
	MailgunServer    string // 候选 3：Mailgun SMTP 服务器
	MailgunPort      int    // 候选 3：Mailgun SMTP 端口，默认 587
	MailgunLogin     string // 候选 3：Mailgun SMTP 登录名
	MailgunPassword  string // 候选 3：Mailgun SMTP 密码
	SMTPHost         string // 候选 4：通用 SMTP 主机
	SMTPPort         int    // 候选 4：通用 SMTP 端口
	SMTPUser         string // 候选 4：通用 SMTP 用户（可选）
	SMTPPass         string // 候选 4：通用 SMTP 密码（可选）
	SMTPSecure       bool   // 候选 4：是否使用隐式 TLS
	SMTPInsecureTLS  bool   // 候选 4：是否放宽 TLS 证书校验
	GmailUser        string // 候选 5：Gmail 用户
	GmailPassword    string // 候选 5：Gmail 应用密码
}

// WebhookConfig 定义入站 Webhook 的字段名映射
//
// 字段名因上游服务商而异，默认使用 Mailgun 的命名约定。
type WebhookConfig struct {
	FromField    string // 发件人字段名，默认 "from"
	ToField      string // 收件人字段名，默认 "to"
	SubjectField string // 主题字段名，默认 "subject"
	TextField    string // 纯文本正文字段名，默认 "body-plain"
	HTMLField    string // HTML 正文字段名，默认 "body-html"
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Environment string          // 部署环境: "development" 或 "production"
	Server      ServerConfig    // HTTP 服务器配置
	SMTP        SMTPConfig      // SMTP 接收服务配置
	Outbound    OutboundConfig  // 发件身份配置
	Providers   ProvidersConfig // 出站传输候选配置
	Webhook     WebhookConfig   // Webhook 字段映射配置
	CORS        CORSConfig      // 跨域配置
	Log         LogConfig       // 日志配置
	Database    DatabaseConfig  // 数据库配置
}

// Production 报告是否处于生产部署。
//
// 生产部署下禁止出站传输回退到本地回环，详见 provider 包。
func (c *Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: MAILRELAY_
// 例如: MAILRELAY_SERVER_PORT, MAILRELAY_PROVIDERS_SENDGRID_API_KEY
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("mailrelay")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("environment", "development")
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("smtp.bind_addr", ":587")
	viper.SetDefault("smtp.domain", "mailrelay.local")
	viper.SetDefault("smtp.max_message_bytes", 10*1024*1024)
	viper.SetDefault("smtp.max_conns", 64)
	viper.SetDefault("smtp.max_conn_rate", 16)
	viper.SetDefault("outbound.sender_address", "")
	viper.SetDefault("outbound.sender_name", "")
	viper.SetDefault("providers.sendgrid_api_key", "")
	viper.SetDefault("providers.sendgrid_username", "")
	viper.SetDefault("providers.sendgrid_password", "")
	viper.SetDefault("providers.mailgun_server", "")
	viper.SetDefault("providers.mailgun_port", 587)
	viper.SetDefault("providers.mailgun_login", "")
	viper.SetDefault("providers.mailgun_password", "")
	viper.SetDefault("providers.smtp_host", "")
	viper.SetDefault("providers.smtp_port", 0)
	viper.SetDefault("providers.smtp_user", "")
	viper.SetDefault("providers.smtp_pass", "")
	viper.SetDefault("providers.smtp_secure", false)
	viper.SetDefault("providers.smtp_insecure_tls", false)
	viper.SetDefault("providers.gmail_user", "")
	viper.SetDefault("providers.gmail_password", "")
	viper.SetDefault("webhook.from_field", "from")
	viper.SetDefault("webhook.to_field", "to")
	viper.SetDefault("webhook.subject_field", "subject")
	viper.SetDefault("webhook.text_field", "body-plain")
	viper.SetDefault("webhook.html_field", "body-html")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")

	environment := strings.ToLower(viper.GetString("environment"))
	if environment != "development" && environment != "production" {
		return nil, fmt.Errorf("invalid environment: %q (expected development or production)", environment)
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	maxMessageBytes := viper.GetInt64("smtp.max_message_bytes")
	if maxMessageBytes <= 0 {
		maxMessageBytes = 10 * 1024 * 1024
	}

	cfg := &Config{
		Environment: environment,
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		SMTP: SMTPConfig{
			BindAddr:        viper.GetString("smtp.bind_addr"),
			Domain:          viper.GetString("smtp.domain"),
			MaxMessageBytes: maxMessageBytes,
			MaxConns:        viper.GetInt("smtp.max_conns"),
			MaxConnRate:     viper.GetInt("smtp.max_conn_rate"),
		},
		Outbound: OutboundConfig{
			SenderAddress: viper.GetString("outbound.sender_address"),
			SenderName:    viper.GetString("outbound.sender_name"),
		},
		Providers: ProvidersConfig{
			SendGridAPIKey:   viper.GetString("providers.sendgrid_api_key"),
			SendGridUsername: viper.GetString("providers.sendgrid_username"),
			SendGridPassword: viper.GetString("providers.sendgrid_password"),
			MailgunServer:    viper.GetString("providers.mailgun_server"),
			MailgunPort:      viper.GetInt("providers.mailgun_port"),
			MailgunLogin:     viper.GetString("providers.mailgun_login"),
			MailgunPassword:  viper.GetString("providers.mailgun_password"),
			SMTPHost:         viper.GetString("providers.smtp_host"),
			SMTPPort:         viper.GetInt("providers.smtp_port"),
			SMTPUser:         viper.GetString("providers.smtp_user"),
			SMTPPass:         viper.GetString("providers.smtp_pass"),
			SMTPSecure:       viper.GetBool("providers.smtp_secure"),
			SMTPInsecureTLS:  viper.GetBool("providers.smtp_insecure_tls"),
			GmailUser:        viper.GetString("providers.gmail_user"),
			GmailPassword:    viper.GetString("providers.gmail_password"),
		},
		Webhook: WebhookConfig{
			FromField:    viper.GetString("webhook.from_field"),
			ToField:      viper.GetString("webhook.to_field"),
			SubjectField: viper.GetString("webhook.subject_field"),
			TextField:    viper.GetString("webhook.text_field"),
			HTMLField:    viper.GetString("webhook.html_field"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 环境变量不会被覆盖（已存在的环境变量优先级更高）
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	// 从 cmd/server 等子目录运行时尝试父目录的 .env
	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
