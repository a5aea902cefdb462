package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/personachat/internal/ai"
	"github.com/suPer8Hu/personachat/internal/chat"
	"github.com/suPer8Hu/personachat/internal/common"
	"github.com/suPer8Hu/personachat/internal/config"
	"github.com/suPer8Hu/personachat/internal/httpapi/middleware"
	"github.com/suPer8Hu/personachat/internal/plugin"
	"github.com/suPer8Hu/personachat/internal/rag"
)

type Handler struct {
	Cfg       *config.Config
	ChatSvc   *chat.Service
	Providers *ai.Registry
	Plugins   *plugin.Chain

	// Ingestor and Retriever are nil when no embedder is configured.
	Ingestor  *rag.Ingestor
	Retriever *rag.Retriever
	// AfterIngest persists the vector index after an upload.
	AfterIngest func() error
}

func NewHandler(cfg *config.Config, svc *chat.Service, providers *ai.Registry, chain *plugin.Chain) *Handler {
	return &Handler{Cfg: cfg, ChatSvc: svc, Providers: providers, Plugins: chain}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func notFoundCode(kind string) int {
	switch kind {
	case "conversation":
		return 40401
	case "job":
		return 40402
	case "provider":
		return 40403
	case "plugin":
		return 40404
	}
	return 40400
}

// writeError maps the error taxonomy onto the response envelope.
func writeError(c *gin.Context, tag string, err error) {
	var nf *common.NotFoundError
	if errors.As(err, &nf) {
		common.Fail(c, http.StatusNotFound, notFoundCode(nf.Kind), nf.Error())
		return
	}
	if common.IsConfigurationError(err) {
		common.Fail(c, http.StatusBadRequest, 40001, err.Error())
		return
	}
	if pe, ok := common.AsProviderError(err); ok {
		log.Printf("[%s] provider error: %v", tag, err)
		common.FailWithData(c, http.StatusBadGateway, 50201, "upstream provider error", gin.H{
			"provider":        pe.Provider,
			"upstream_status": pe.Status,
			"detail":          pe.Msg,
		})
		return
	}
	if errors.Is(err, chat.ErrAsyncDisabled) {
		common.Fail(c, http.StatusServiceUnavailable, 50301, err.Error())
		return
	}
	if errors.Is(err, context.Canceled) {
		// client went away
		c.Abort()
		return
	}
	log.Printf("[%s] request_id=%s err=%v", tag, c.GetString(middleware.RequestIDKey), err)
	common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
}
