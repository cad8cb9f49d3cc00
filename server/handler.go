package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/chaos-io/cutout/pipeline"
	"github.com/chaos-io/cutout/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

type CutoutHandler struct {
	svc     *CutoutService
	cache   Cache
	maxSize int64
}

func NewCutoutHandler(svc *CutoutService, cache Cache, maxSize int64) *CutoutHandler {
	if cache == nil {
		cache = NopCache{}
	}
	return &CutoutHandler{svc: svc, cache: cache, maxSize: maxSize}
}

// Cutout 处理图片上传
//
//	image      图片文件 (JPEG/PNG)
//	method     threshold | neural
//	on_white   是否合成白底
//	watermark  水印文字
func (h *CutoutHandler) Cutout(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		util.Logger.Error("failed to get uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Message: "请上传图片文件",
			Error:   err.Error(),
		})
		return
	}

	// 验证文件大小
	if h.maxSize > 0 && file.Size > h.maxSize {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("文件大小超过限制 (%d MB)", h.maxSize/(1024*1024)),
		})
		return
	}

	req, err := h.parseRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Message: "参数错误",
			Error:   err.Error(),
		})
		return
	}

	data, err := readUpload(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Success: false,
			Message: "读取文件失败",
			Error:   err.Error(),
		})
		return
	}

	// 验证文件类型
	if !allowedTypes[http.DetectContentType(data)] {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Message: "不支持的文件类型，仅支持 JPEG/PNG",
		})
		return
	}

	md5 := util.BytesMD5(data)
	key := cacheKey(md5, req)
	ctx := c.Request.Context()

	cached, err := h.cache.Get(ctx, key)
	if err != nil {
		util.Logger.Warn("failed to get cache", zap.Error(err))
	}
	if cached != nil && h.svc.Exists(cached) {
		util.Logger.Info("cache hit", zap.String("cache_key", key))
		c.JSON(http.StatusOK, CutoutResponse{
			Success: true,
			Message: "处理成功（来自缓存）",
			Cached:  true,
			Data:    cached,
		})
		return
	}

	result, err := h.svc.Process(ctx, data, md5, req)
	if err != nil {
		util.Logger.Error("failed to process image", zap.String("md5", md5), zap.Error(err))
		c.JSON(statusOf(err), ErrorResponse{
			Success: false,
			Message: "图片处理失败",
			Error:   err.Error(),
		})
		return
	}

	// 保存到缓存
	if err := h.cache.Set(ctx, key, result); err != nil {
		util.Logger.Warn("failed to set cache", zap.Error(err))
	}

	c.JSON(http.StatusOK, CutoutResponse{
		Success: true,
		Message: "处理成功",
		Data:    result,
	})
}

func (h *CutoutHandler) parseRequest(c *gin.Context) (Request, error) {
	method, err := pipeline.ParseMethod(c.DefaultPostForm("method", string(h.svc.proc.Options().Method)))
	if err != nil {
		return Request{}, err
	}
	onWhite, err := strconv.ParseBool(c.DefaultPostForm("on_white", "false"))
	if err != nil {
		return Request{}, fmt.Errorf("on_white: %w", err)
	}
	return Request{
		Method:    method,
		OnWhite:   onWhite,
		Watermark: c.PostForm("watermark"),
	}, nil
}

func readUpload(c *gin.Context) ([]byte, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, err
	}
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return io.ReadAll(f)
}

// cacheKey 同一张图的不同参数分开缓存
func cacheKey(md5 string, req Request) string {
	key := fmt.Sprintf("%s:%s:%t", md5, req.Method, req.OnWhite)
	if req.Watermark != "" {
		key += ":" + util.BytesMD5([]byte(req.Watermark))
	}
	return key
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
