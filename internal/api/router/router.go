package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/image-proxy/internal/api/handlers/image"
	"github.com/aliskhannn/image-proxy/internal/middleware"
)

func Setup(h *image.Handler) *ginext.Engine {
	r := ginext.New()

	// Source URLs arrive percent-encoded in a single path segment.
	r.UseRawPath = true
	r.UnescapePathValues = true

	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.RequestID())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	r.GET("/image/:spec", h.Get)      // source url in ?url=
	r.GET("/image/:spec/:url", h.Get) // source url in the path

	api := r.Group("/api")

	api.POST("/pipeline", h.BuildPipeline)         // json pipeline -> token
	api.GET("/pipeline/:spec", h.DescribePipeline) // token -> json pipeline
	api.GET("/cache/stats", h.CacheStats)
	api.POST("/warm", h.Warm) // enqueue a render

	return r
}
