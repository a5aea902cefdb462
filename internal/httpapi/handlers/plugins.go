package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/personachat/internal/common"
)

func (h *Handler) ListPlugins(c *gin.Context) {
	common.OK(c, gin.H{"plugins": h.Plugins.List()})
}

func (h *Handler) EnablePlugin(c *gin.Context)  { h.togglePlugin(c, true) }
func (h *Handler) DisablePlugin(c *gin.Context) { h.togglePlugin(c, false) }

func (h *Handler) togglePlugin(c *gin.Context, enabled bool) {
	id := c.Param("id")
	var err error
	if enabled {
		err = h.Plugins.Enable(c.Request.Context(), id)
	} else {
		err = h.Plugins.Disable(c.Request.Context(), id)
	}
	if err != nil {
		writeError(c, "TogglePlugin", err)
		return
	}
	h.writePlugin(c, id)
}

func (h *Handler) UpdatePluginSettings(c *gin.Context) {
	var settings map[string]any
	if err := c.ShouldBindJSON(&settings); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	id := c.Param("id")
	if err := h.Plugins.UpdateSettings(c.Request.Context(), id, settings); err != nil {
		writeError(c, "UpdatePluginSettings", err)
		return
	}
	h.writePlugin(c, id)
}

func (h *Handler) writePlugin(c *gin.Context, id string) {
	info, err := h.Plugins.Get(id)
	if err != nil {
		writeError(c, "Plugin", err)
		return
	}
	common.OK(c, gin.H{"plugin": info})
}
