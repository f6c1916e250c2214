package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_Resolve(t *testing.T) {
	t.Run("SendGrid API Key 优先于通用 SMTP", func(t *testing.T) {
		chain := NewChain(Config{
			SendGridAPIKey: "SG.key",
			SMTPHost:       "smtp.example.com",
			SMTPPort:       587,
		})

		sender, err := chain.Resolve()

		require.NoError(t, err)
		assert.Equal(t, "sendgrid-apikey", sender.Name())
	})

	t.Run("严格按优先级顺序选择", func(t *testing.T) {
		full := Config{
			SendGridAPIKey:   "SG.key",
			SendGridUsername: "user",
			SendGridPassword: "pass",
			MailgunServer:    "smtp.mailgun.org",
			MailgunLogin:     "postmaster@mg.example.com",
			MailgunPassword:  "secret",
			SMTPHost:         "smtp.example.com",
			SMTPPort:         587,
			GmailUser:        "me@gmail.com",
			GmailPassword:    "app-pass",
		}

		testCases := []struct {
			name     string
			mutate   func(*Config)
			expected string
		}{
			{"全部配置时选 SendGrid API Key", func(c *Config) {}, "sendgrid-apikey"},
			{"去掉 API Key 后选 SendGrid 用户名密码", func(c *Config) {
				c.SendGridAPIKey = ""
			}, "sendgrid"},
			{"再去掉用户名密码后选 Mailgun", func(c *Config) {
				c.SendGridAPIKey = ""
				c.SendGridUsername = ""
			}, "mailgun"},
			{"再去掉 Mailgun 后选通用 SMTP", func(c *Config) {
				c.SendGridAPIKey = ""
				c.SendGridUsername = ""
				c.MailgunServer = ""
			}, "smtp"},
			{"再去掉通用 SMTP 后选 Gmail", func(c *Config) {
				c.SendGridAPIKey = ""
				c.SendGridUsername = ""
				c.MailgunServer = ""
				c.SMTPHost = ""
			}, "gmail"},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				cfg := full
				tc.mutate(&cfg)

				sender, err := NewChain(cfg).Resolve()

				require.NoError(t, err)
				assert.Equal(t, tc.expected, sender.Name())
			})
		}
	})

	t.Run("候选配置不齐全时跳过", func(t *testing.T) {
		// Mailgun 缺密码，应落到通用 SMTP
		chain := NewChain(Config{
			MailgunServer: "smtp.mailgun.org",
			MailgunLogin:  "postmaster@mg.example.com",
			SMTPHost:      "smtp.example.com",
			SMTPPort:      587,
		})

		sender, err := chain.Resolve()

		require.NoError(t, err)
		assert.Equal(t, "smtp", sender.Name())
	})

	t.Run("通用 SMTP 缺端口视为未配置", func(t *testing.T) {
		chain := NewChain(Config{
			SMTPHost: "smtp.example.com",
		})

		sender, err := chain.Resolve()

		require.NoError(t, err)
		assert.Equal(t, "loopback", sender.Name())
	})

	t.Run("开发环境无候选时回退到回环", func(t *testing.T) {
		chain := NewChain(Config{})

		sender, err := chain.Resolve()

		require.NoError(t, err)
		assert.Equal(t, "loopback", sender.Name())
	})

	t.Run("生产环境无候选时报配置错误", func(t *testing.T) {
		chain := NewChain(Config{Production: true})

		sender, err := chain.Resolve()

		assert.Nil(t, sender)
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("生产环境有候选时正常选择", func(t *testing.T) {
		chain := NewChain(Config{
			Production:    true,
			GmailUser:     "me@gmail.com",
			GmailPassword: "app-pass",
		})

		sender, err := chain.Resolve()

		require.NoError(t, err)
		assert.Equal(t, "gmail", sender.Name())
	})

	t.Run("每次求值互不影响", func(t *testing.T) {
		chain := NewChain(Config{GmailUser: "me@gmail.com", GmailPassword: "app-pass"})

		first, err1 := chain.Resolve()
		second, err2 := chain.Resolve()

		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, first.Name(), second.Name())
	})
}
