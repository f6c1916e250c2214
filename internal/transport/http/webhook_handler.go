package httptransport

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"mailrelay/backend/internal/config"
	"mailrelay/backend/internal/service"
)

// WebhookHandler 处理服务商推送的入站邮件通知。
//
// 上游服务商已完成 SMTP 接收与解析，这里只做字段归一并落库。
// 不做签名校验，真实部署应在本处理器外层加验证中间件。
type WebhookHandler struct {
	mails  *service.MailService
	fields config.WebhookConfig
}

// NewWebhookHandler 创建 Webhook 处理器。
func NewWebhookHandler(mails *service.MailService, fields config.WebhookConfig) *WebhookHandler {
	return &WebhookHandler{
		mails:  mails,
		fields: fields,
	}
}

// receiveInbound 接收一封服务商推送的邮件。
//
// 入库成功返回 200，上游据此停止重试；入库失败返回 500。
func (h *WebhookHandler) receiveInbound(c *gin.Context) {
	payload := h.extractPayload(c)

	from := payload[h.fields.FromField]
	to := payload[h.fields.ToField]
	if from == "" || to == "" {
		BadRequest(c, "缺少发件人或收件人字段")
		return
	}

	// 正文缺失归一为空串，与 SMTP 路径保持同一形状
	_, err := h.mails.CreateInbound(service.InboundMailInput{
		From:    from,
		To:      to,
		Subject: payload[h.fields.SubjectField],
		Text:    payload[h.fields.TextField],
		HTML:    payload[h.fields.HTMLField],
		Source:  service.SourceWebhook,
	})
	if err != nil {
		InternalError(c, "存储邮件失败")
		return
	}

	SuccessWithMsg(c, "邮件已接收", nil)
}

// extractPayload 按配置的字段名从表单或 JSON 体提取载荷。
func (h *WebhookHandler) extractPayload(c *gin.Context) map[string]string {
	names := []string{
		h.fields.FromField,
		h.fields.ToField,
		h.fields.SubjectField,
		h.fields.TextField,
		h.fields.HTMLField,
	}

	payload := make(map[string]string, len(names))

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var body map[string]interface{}
		if err := c.ShouldBindJSON(&body); err == nil {
			for _, name := range names {
				if value, ok := body[name]; ok && value != nil {
					payload[name] = fmt.Sprintf("%v", value)
				}
			}
		}
		return payload
	}

	for _, name := range names {
		payload[name] = c.PostForm(name)
	}
	return payload
}
