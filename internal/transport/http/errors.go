package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/cjaradhye/burnbox/internal/service"
)

// 通用错误消息
const (
	MsgInvalidRequest     = "invalid request body"
	MsgAuthRequired       = "authentication required"
	MsgMailboxNotFound    = "mailbox not found"
	MsgMessageNotFound    = "message not found"
	MsgAttachmentNotFound = "attachment not found"
	MsgForbidden          = "you do not own this mailbox"
)

// respondServiceError 把业务错误映射为统一的 HTTP 错误响应。
// 顺序与业务层一致：先 404（不存在），再 403（非本人）。
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMailboxNotFound):
		NotFound(c, MsgMailboxNotFound)
	case errors.Is(err, service.ErrMessageNotFound):
		NotFound(c, MsgMessageNotFound)
	case errors.Is(err, service.ErrAttachmentNotFound):
		NotFound(c, MsgAttachmentNotFound)
	case errors.Is(err, service.ErrForbidden):
		Forbidden(c, MsgForbidden)
	default:
		InternalError(c)
	}
}
