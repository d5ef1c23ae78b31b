package ginsrv

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

// SetupRouter builds an engine with panic recovery, the given middlewares
// in order and every route.
func SetupRouter(routes []Route, middlewares ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middlewares...)

	for _, route := range routes {
		router.Handle(route.Method, route.Path, route.Handler)
	}

	return router
}

// HealthRoute answers GET /health with {"health":"ok"}.
func HealthRoute() Route {
	return Route{
		Method: http.MethodGet,
		Path:   "/health",
		Handler: func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"health": "ok"})
		},
	}
}

// HandlerRoute mounts a plain net/http handler, e.g. a metrics endpoint.
func HandlerRoute(method, path string, h http.Handler) Route {
	return Route{Method: method, Path: path, Handler: gin.WrapH(h)}
}
