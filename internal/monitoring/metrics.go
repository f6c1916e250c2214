package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 中继核心指标
type Metrics struct {
	// 收件指标（按来源: smtp / webhook）
	MailIngested *prometheus.CounterVec
	// 入站拒绝指标（按原因: parse）
	InboundRejected *prometheus.CounterVec
	// 已接受但入库失败的入站消息数（SMTP 路径接受后尽力入库）
	InboundStoreFailures prometheus.Counter

	// 发件指标
	MailDelivered prometheus.Counter // 实际投递成功
	MailSavedOnly prometheus.Counter // 已入库但未投递
}

// NewMetrics 创建并注册中继指标
func NewMetrics() *Metrics {
	return &Metrics{
		MailIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mailrelay_mail_ingested_total",
			Help: "Total number of inbound mails stored, by source",
		}, []string{"source"}),
		InboundRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mailrelay_inbound_rejected_total",
			Help: "Total number of inbound messages rejected, by reason",
		}, []string{"reason"}),
		InboundStoreFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailrelay_inbound_store_failures_total",
			Help: "Total number of accepted inbound messages that failed to be stored",
		}),
		MailDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailrelay_mail_delivered_total",
			Help: "Total number of outbound mails delivered by a transport",
		}),
		MailSavedOnly: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailrelay_mail_saved_only_total",
			Help: "Total number of outbound mails stored but not delivered",
		}),
	}
}

// HTTPHandler 返回 Prometheus 指标的 HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}

// RegisterSMTPConnections 注册当前 SMTP 并发连接数量表
//
// current 在每次抓取时求值，由连接限流器提供。
func (m *Metrics) RegisterSMTPConnections(current func() int) prometheus.GaugeFunc {
	return promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "mailrelay_smtp_connections",
		Help: "Current number of active SMTP connections",
	}, func() float64 {
		return float64(current())
	})
}
