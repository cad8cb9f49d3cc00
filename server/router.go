// Package server 提供抠图的 HTTP 接口、结果缓存和导出目录的定时清理。
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

var Version = "dev"

// NewRouter 注册路由
//
//	GET  /health
//	POST /api/v1/cutout
//	GET  /files/:name   导出结果
func NewRouter(h *CutoutHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Logger())
	if h.maxSize > 0 {
		r.MaxMultipartMemory = h.maxSize
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": Version,
		})
	})

	r.Static("/files", h.svc.Dir())

	api := r.Group("/api/v1")
	{
		api.POST("/cutout", h.Cutout)
	}
	return r
}
