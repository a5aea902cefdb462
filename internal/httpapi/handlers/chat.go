package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/personachat/internal/chat"
	"github.com/suPer8Hu/personachat/internal/common"
)

type chatReq struct {
	Message        *string `json:"message"`
	ConversationID string  `json:"conversation_id"`
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
}

func bindChat(c *gin.Context) (chat.ChatRequest, bool) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return chat.ChatRequest{}, false
	}
	if req.Message == nil || strings.TrimSpace(*req.Message) == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "message required")
		return chat.ChatRequest{}, false
	}
	return chat.ChatRequest{
		Message:        *req.Message,
		ConversationID: strings.TrimSpace(req.ConversationID),
		Provider:       req.Provider,
		Model:          req.Model,
	}, true
}

func (h *Handler) Chat(c *gin.Context) {
	req, ok := bindChat(c)
	if !ok {
		return
	}
	res, err := h.ChatSvc.HandleChat(c.Request.Context(), req)
	if err != nil {
		writeError(c, "Chat", err)
		return
	}
	common.OK(c, res)
}

func (h *Handler) ChatAsync(c *gin.Context) {
	req, ok := bindChat(c)
	if !ok {
		return
	}
	job, err := h.ChatSvc.SubmitJob(c.Request.Context(), req)
	if err != nil {
		writeError(c, "ChatAsync", err)
		return
	}
	common.OK(c, gin.H{"job_id": job.ID, "status": job.Status})
}

func (h *Handler) GetChatJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}
	j, err := h.ChatSvc.GetJob(c.Request.Context(), jobID)
	if err != nil {
		writeError(c, "GetChatJob", err)
		return
	}
	common.OK(c, gin.H{"job": j})
}
