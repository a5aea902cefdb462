package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/personachat/internal/common"
	"github.com/suPer8Hu/personachat/internal/httpapi/handlers"
	"github.com/suPer8Hu/personachat/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.MaxMultipartMemory = 8 << 20

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	// chat
	r.POST("/chat", h.Chat)
	r.POST("/chat/async", h.ChatAsync)
	r.GET("/chat/jobs/:job_id", h.GetChatJob)

	// history
	r.GET("/history", h.ListConversations)
	r.POST("/history", h.CreateConversation)
	r.GET("/history/:id", h.GetHistory)
	r.DELETE("/history/:id", h.DeleteConversation)
	r.PUT("/history/:id/title", h.RenameConversation)

	r.GET("/providers", h.ListProviders)
	r.GET("/providers/:name/models", h.ListModels)

	r.GET("/plugins", h.ListPlugins)
	r.POST("/plugins/:id/enable", h.EnablePlugin)
	r.POST("/plugins/:id/disable", h.DisablePlugin)
	r.PUT("/plugins/:id/settings", h.UpdatePluginSettings)

	r.POST("/documents", h.UploadDocument)
	return r
}
