package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"mailrelay/backend/internal/config"
	"mailrelay/backend/internal/service"
	"mailrelay/backend/internal/storage"
)

// Handler 聚合邮件相关的 HTTP 处理逻辑。
type Handler struct {
	mails    *service.MailService
	outbound config.OutboundConfig
}

// sendMailRequest 发件请求体
//
// 发件人身份通常由认证层解析后注入，这里允许请求显式覆盖，
// 否则使用配置的缺省发件身份。
type sendMailRequest struct {
	To       string `json:"to" binding:"required"`
	Subject  string `json:"subject"`
	Text     string `json:"text"`
	HTML     string `json:"html"`
	From     string `json:"from"`
	FromName string `json:"fromName"`
}

// sendMail 发送一封邮件。
//
// 只有入库失败才返回 500；传输失败在响应体里以 status=saved 表达。
func (h *Handler) sendMail(c *gin.Context) {
	var req sendMailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数")
		return
	}

	senderAddress := req.From
	senderName := req.FromName
	if senderAddress == "" {
		senderAddress = h.outbound.SenderAddress
		senderName = h.outbound.SenderName
	}
	if senderAddress == "" {
		BadRequest(c, "未指定发件身份且未配置缺省发件地址")
		return
	}

	result, err := h.mails.Send(service.SendInput{
		SenderAddress: senderAddress,
		SenderName:    senderName,
		To:            req.To,
		Subject:       req.Subject,
		Text:          req.Text,
		HTML:          req.HTML,
	})
	if err != nil {
		InternalError(c, "保存邮件失败")
		return
	}

	Success(c, result)
}

// listInbox 列出收件箱。
func (h *Handler) listInbox(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		BadRequest(c, "缺少 address 参数")
		return
	}

	mails, err := h.mails.ListInbox(address)
	if err != nil {
		InternalError(c, "获取收件箱失败")
		return
	}

	Success(c, mails)
}

// listSent 列出已发送邮件。
func (h *Handler) listSent(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		BadRequest(c, "缺少 address 参数")
		return
	}

	mails, err := h.mails.ListSent(address)
	if err != nil {
		InternalError(c, "获取已发送邮件失败")
		return
	}

	Success(c, mails)
}

// getMail 获取单封邮件。
func (h *Handler) getMail(c *gin.Context) {
	mail, err := h.mails.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrMailNotFound) {
			NotFound(c, "邮件不存在")
			return
		}
		InternalError(c, "获取邮件失败")
		return
	}

	Success(c, mail)
}
