package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailrelay/backend/internal/config"
	"mailrelay/backend/internal/logger"
	"mailrelay/backend/internal/monitoring"
	"mailrelay/backend/internal/provider"
	"mailrelay/backend/internal/service"
	"mailrelay/backend/internal/smtp"
	"mailrelay/backend/internal/storage"
	"mailrelay/backend/internal/storage/memory"
	sqlstore "mailrelay/backend/internal/storage/sql"
	httptransport "mailrelay/backend/internal/transport/http"
)

// main 启动同时包含 HTTP API 与 SMTP 收件入口的邮件中继服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     "",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting mail relay server",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	var store storage.Store

	// 根据配置选择存储类型
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		// 内存存储（开发环境）
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}

	// 初始化监控系统（promauto 已自动注册指标）
	metrics := monitoring.NewMetrics()

	// 出站传输候选链：配置快照在启动时固定
	resolver := provider.NewChain(provider.Config{
		SendGridAPIKey:   cfg.Providers.SendGridAPIKey,
		SendGridUsername: cfg.Providers.SendGridUsername,
		SendGridPassword: cfg.Providers.SendGridPassword,
		MailgunServer:    cfg.Providers.MailgunServer,
		MailgunPort:      cfg.Providers.MailgunPort,
		MailgunLogin:     cfg.Providers.MailgunLogin,
		MailgunPassword:  cfg.Providers.MailgunPassword,
		SMTPHost:         cfg.Providers.SMTPHost,
		SMTPPort:         cfg.Providers.SMTPPort,
		SMTPUser:         cfg.Providers.SMTPUser,
		SMTPPass:         cfg.Providers.SMTPPass,
		SMTPSecure:       cfg.Providers.SMTPSecure,
		SMTPInsecureTLS:  cfg.Providers.SMTPInsecureTLS,
		GmailUser:        cfg.Providers.GmailUser,
		GmailPassword:    cfg.Providers.GmailPassword,
		Production:       cfg.Production(),
	})

	// 生产部署下提前暴露传输未配置的问题，但不阻止启动：
	// 入站接收与查询接口不依赖出站传输
	if _, err := resolver.Resolve(); err != nil {
		log.Warn("no outbound transport configured, outgoing mail will be saved only", zap.Error(err))
	}

	// 初始化服务层
	mailService := service.NewMailService(store, resolver, log)
	mailService.SetMetrics(metrics)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:      cfg,
		MailService: mailService,
		Metrics:     metrics,
		Store:       store,
		Logger:      log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 创建 SMTP 服务器
	limiter := smtp.NewConnectionLimiter(cfg.SMTP.MaxConns, cfg.SMTP.MaxConnRate)
	metrics.RegisterSMTPConnections(limiter.Current)
	smtpBackend := smtp.NewBackend(mailService, log, limiter, cfg.SMTP.MaxMessageBytes)
	smtpBackend.SetMetrics(metrics)
	smtpServer := gosmtp.NewServer(smtpBackend)
	smtpServer.Addr = cfg.SMTP.BindAddr
	smtpServer.Domain = cfg.SMTP.Domain
	smtpServer.AllowInsecureAuth = cfg.Log.Development // 仅在开发模式允许不安全认证
	smtpServer.ReadTimeout = 10 * time.Second
	smtpServer.WriteTimeout = 10 * time.Second
	smtpServer.MaxMessageBytes = cfg.SMTP.MaxMessageBytes
	smtpServer.MaxRecipients = 50

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// SMTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting SMTP server",
			zap.String("address", cfg.SMTP.BindAddr),
			zap.String("domain", cfg.SMTP.Domain),
		)
		if err := smtpServer.ListenAndServe(); err != nil {
			log.Error("SMTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// 关闭 HTTP 服务器
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		// 关闭 SMTP 服务器
		if err := smtpServer.Close(); err != nil {
			log.Warn("SMTP server close warning", zap.Error(err))
		}

		// 关闭存储层
		if err := store.Close(); err != nil {
			log.Warn("storage close warning", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
