package api

import (
	"fmt"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// SetupRoutes registers the page and JSON API routes.
func SetupRoutes(router *gin.Engine, handler *Handler) {
	limit := LimitBody(handler.cfg.Server.MaxUploadBytes)

	// --- Page routes ---
	router.GET("/", handler.HandleIndex)
	router.POST("/settings", handler.HandleSettings)
	router.POST("/upload", limit, handler.HandleUpload)
	router.POST("/generate", handler.HandleGenerate)
	router.POST("/items/:index/regenerate", handler.HandleRegenerate)
	router.POST("/items/:index/delete", handler.HandleDelete)
	router.GET("/export.csv", handler.HandleExport)
	router.POST("/export/publish", handler.HandlePublish)
	router.POST("/reset", handler.HandleReset)

	// --- API routes ---
	api := router.Group("/api")
	{
		api.GET("/health", handler.HandleHealth)
		api.PUT("/settings", handler.HandleAPISettings)

		q := api.Group("/quiz")
		q.GET("", handler.HandleGetQuiz)
		q.POST("/upload", limit, handler.HandleAPIUpload)
		q.POST("/generate", handler.HandleAPIGenerate)
		q.POST("/items/:index/regenerate", handler.HandleAPIRegenerate)
		q.DELETE("/items/:index", handler.HandleAPIDelete)
		q.GET("/export", handler.HandleAPIExport)
		q.POST("/export/publish", handler.HandleAPIPublish)
	}
}

// NewRouter builds the gin engine with middleware, sessions and templates.
func NewRouter(handler *Handler, store sessions.Store) (*gin.Engine, error) {
	tmpl, err := LoadTemplates()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	router := gin.New()
	router.Use(Recovery(handler.log), RequestLogger(handler.log))
	router.Use(CORSMiddleware(handler.cfg.Server.FrontendURL))
	router.Use(sessions.Sessions(handler.cfg.Session.Name, store))
	router.MaxMultipartMemory = handler.cfg.Server.MaxUploadBytes
	router.SetHTMLTemplate(tmpl)

	SetupRoutes(router, handler)
	return router, nil
}
