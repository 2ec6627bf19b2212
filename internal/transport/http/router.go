// Package http builds the dashboard HTTP surface: a JSON API group, a
// websocket endpoint, and the static UI.
package http

import (
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"

	"sentrycam-go/internal/platform/logging"
)

// Router bundles the engine with the /api group services mount onto.
type Router struct {
	Engine *gin.Engine
	API    *gin.RouterGroup
}

// Build creates the engine with recovery, CORS, and the static UI mounted.
// Services register their routes on the returned API group.
func Build(staticDir string, logger *logging.Logger) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	if staticDir != "" {
		if _, err := os.Stat(staticDir); err == nil {
			engine.Use(static.Serve("/", static.LocalFile(staticDir, true)))
		} else {
			logger.WarnTag("HTTP", "static directory %s not found, UI disabled", staticDir)
		}
	}

	return &Router{
		Engine: engine,
		API:    engine.Group("/api"),
	}
}
