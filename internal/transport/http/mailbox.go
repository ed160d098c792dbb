package httptransport

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cjaradhye/burnbox/internal/middleware"
	"github.com/cjaradhye/burnbox/internal/service"
)

// MailboxHandler 处理邮箱与邮件相关的端点。
type MailboxHandler struct {
	mailboxes *service.MailboxService
	messages  *service.MessageService
	log       *zap.Logger
}

// NewMailboxHandler 创建邮箱处理器。
func NewMailboxHandler(mailboxes *service.MailboxService, messages *service.MessageService, log *zap.Logger) *MailboxHandler {
	return &MailboxHandler{
		mailboxes: mailboxes,
		messages:  messages,
		log:       log,
	}
}

type createMailboxRequest struct {
	Lifespan      int    `json:"lifespan"`
	BurnAfterRead bool   `json:"burnAfterRead"`
	EmailName     string `json:"emailName"`
}

// Create 创建新的临时邮箱。未登录直接拒绝，不创建任何记录。
func (h *MailboxHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	var req createMailboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	mb, err := h.mailboxes.Create(c.Request.Context(), service.CreateMailboxInput{
		UserID:        userID,
		Lifespan:      req.Lifespan,
		BurnAfterRead: req.BurnAfterRead,
		EmailName:     req.EmailName,
	})
	if err != nil {
		h.log.Error("create mailbox failed", zap.Error(err))
		InternalError(c)
		return
	}

	Created(c, mb)
}

// List 返回当前用户的全部有效邮箱。
func (h *MailboxHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	Success(c, h.mailboxes.List(userID))
}

// Status 返回邮箱状态摘要。过期的邮箱也能查询，active 为 false。
func (h *MailboxHandler) Status(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	status, err := h.mailboxes.Status(userID, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	Success(c, status)
}

// Delete 删除邮箱及其所有邮件与附件。
func (h *MailboxHandler) Delete(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	if err := h.mailboxes.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}

	NoContent(c)
}

// ListMessages 返回邮箱内的邮件列表，不标记已读也不触发焚毁。
func (h *MailboxHandler) ListMessages(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	messages, err := h.messages.List(userID, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	Success(c, messages)
}

// GetMessage 读取单封邮件。阅后即焚邮箱在读取后整体销毁。
func (h *MailboxHandler) GetMessage(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	msg, err := h.messages.Read(c.Request.Context(), userID, c.Param("id"), c.Param("messageId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	Success(c, msg)
}

// DownloadAttachment 以原始文件名下载附件内容。
func (h *MailboxHandler) DownloadAttachment(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	att, body, err := h.messages.DownloadAttachment(
		c.Request.Context(),
		userID,
		c.Param("id"),
		c.Param("messageId"),
		c.Param("attachmentId"),
	)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	defer body.Close()

	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
	c.Header("Content-Type", contentType)
	if att.Size > 0 {
		c.Header("Content-Length", fmt.Sprintf("%d", att.Size))
	}
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, body); err != nil {
		h.log.Warn("attachment stream interrupted",
			zap.String("attachment_id", att.ID),
			zap.Error(err),
		)
	}
}

// Health 邮箱子系统健康探针。
func (h *MailboxHandler) Health(c *gin.Context) {
	Success(c, gin.H{"status": "UP"})
}
