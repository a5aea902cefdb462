package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/personachat/internal/common"
)

func (h *Handler) ListConversations(c *gin.Context) {
	list, err := h.ChatSvc.ListConversations(c.Request.Context())
	if err != nil {
		writeError(c, "ListConversations", err)
		return
	}
	common.OK(c, gin.H{"conversations": list})
}

type createConversationReq struct {
	Title string `json:"title"`
}

func (h *Handler) CreateConversation(c *gin.Context) {
	var req createConversationReq
	_ = c.ShouldBindJSON(&req) // allow empty body

	conv, err := h.ChatSvc.CreateConversation(c.Request.Context(), req.Title)
	if err != nil {
		writeError(c, "CreateConversation", err)
		return
	}
	common.OK(c, gin.H{"conversation_id": conv.ID, "title": conv.Title})
}

func (h *Handler) GetHistory(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			common.Fail(c, http.StatusBadRequest, 10002, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	id := c.Param("id")
	msgs, err := h.ChatSvc.History(c.Request.Context(), id, limit)
	if err != nil {
		writeError(c, "GetHistory", err)
		return
	}
	common.OK(c, gin.H{"conversation_id": id, "messages": msgs})
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	id := c.Param("id")
	if err := h.ChatSvc.DeleteConversation(c.Request.Context(), id); err != nil {
		writeError(c, "DeleteConversation", err)
		return
	}
	common.OK(c, gin.H{"deleted": id})
}

type renameReq struct {
	Title string `json:"title" binding:"required"`
}

func (h *Handler) RenameConversation(c *gin.Context) {
	var req renameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	id := c.Param("id")
	if err := h.ChatSvc.RenameConversation(c.Request.Context(), id, req.Title); err != nil {
		writeError(c, "RenameConversation", err)
		return
	}
	common.OK(c, gin.H{"conversation_id": id, "title": req.Title})
}
