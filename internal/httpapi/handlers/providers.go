package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/personachat/internal/common"
)

func (h *Handler) ListProviders(c *gin.Context) {
	common.OK(c, gin.H{
		"providers":        h.Providers.Names(),
		"default_provider": h.Cfg.DefaultProvider,
		"default_model":    h.Cfg.DefaultModel,
	})
}

func (h *Handler) ListModels(c *gin.Context) {
	name := c.Param("name")
	p, err := h.Providers.Get(name)
	if err != nil {
		writeError(c, "ListModels", err)
		return
	}
	common.OK(c, gin.H{"provider": p.Name(), "models": p.ListModels(c.Request.Context())})
}
