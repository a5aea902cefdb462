package handlers

import (
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/personachat/internal/common"
	"github.com/suPer8Hu/personachat/internal/rag"
)

const maxDocumentBytes = 20 << 20

func (h *Handler) UploadDocument(c *gin.Context) {
	if h.Ingestor == nil {
		writeError(c, "UploadDocument", common.NewConfigurationError("embedding", "no embedder configured"))
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "file required")
		return
	}
	if fh.Size > maxDocumentBytes {
		common.Fail(c, http.StatusRequestEntityTooLarge, 10004, "file too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, "UploadDocument", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxDocumentBytes))
	if err != nil {
		writeError(c, "UploadDocument", err)
		return
	}

	name := filepath.Base(fh.Filename)
	text, err := rag.ExtractText(name, data)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10005, err.Error())
		return
	}
	if strings.TrimSpace(text) == "" {
		common.Fail(c, http.StatusBadRequest, 10005, "document contains no text")
		return
	}

	collection := strings.TrimSpace(c.PostForm("collection"))
	if collection == "" {
		if h.Retriever != nil {
			collection, _ = h.Retriever.Settings()
		} else {
			collection = h.Cfg.RAG.Collection
		}
	}

	n, err := h.Ingestor.Ingest(c.Request.Context(), collection, name, text)
	if err != nil {
		writeError(c, "UploadDocument", err)
		return
	}
	if h.AfterIngest != nil {
		if err := h.AfterIngest(); err != nil {
			log.Printf("[UploadDocument] persist index failed: %v", err)
		}
	}
	common.OK(c, gin.H{"source": name, "collection": collection, "chunks": n})
}
