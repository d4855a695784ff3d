package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/timmy/memebot/internal/domain"
)

var errChatRequired = errors.New("chat_id is required for group requests")

// requesterRequest identifies who is asking.
type requesterRequest struct {
	UserID  int64 `json:"user_id" form:"user_id" binding:"required"`
	ChatID  int64 `json:"chat_id" form:"chat_id"`
	IsGroup bool  `json:"is_group" form:"is_group"`
}

func (r requesterRequest) requester() (domain.Requester, error) {
	if r.IsGroup && r.ChatID == 0 {
		return domain.Requester{}, errChatRequired
	}
	return domain.Requester{UserID: r.UserID, ChatID: r.ChatID, IsGroup: r.IsGroup}, nil
}

// bindRequester reads the requester from the query string.
func bindRequester(c *gin.Context) (domain.Requester, error) {
	var req requesterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		return domain.Requester{}, err
	}
	return req.requester()
}

// parseOptionalLanguage returns "" for an empty value.
func parseOptionalLanguage(s string) (domain.Language, error) {
	if s == "" {
		return "", nil
	}
	return domain.ParseLanguage(s)
}
