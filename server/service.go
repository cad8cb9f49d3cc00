package server

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/chaos-io/cutout/pipeline"
	"github.com/chaos-io/cutout/util"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// ErrBusy 等待处理名额超时
var ErrBusy = errors.New("processing queue is full, retry later")

// Request 单次请求可覆盖的参数
type Request struct {
	Method    pipeline.Method
	OnWhite   bool
	Watermark string
}

// CutoutService 并发受限的抠图服务，结果写到 dir 下
type CutoutService struct {
	proc         *pipeline.Processor
	export       pipeline.ExportOptions
	dir          string
	semaphore    chan struct{}
	queueTimeout time.Duration
}

func NewCutoutService(proc *pipeline.Processor, export pipeline.ExportOptions, dir string, maxConcurrent int, queueTimeout time.Duration) *CutoutService {
	return &CutoutService{
		proc:         proc,
		export:       export,
		dir:          dir,
		semaphore:    make(chan struct{}, max(maxConcurrent, 1)),
		queueTimeout: queueTimeout,
	}
}

// Process 解码、抠图、导出并保存 PNG
func (s *CutoutService) Process(ctx context.Context, data []byte, md5 string, req Request) (*Result, error) {
	// 并发控制
	waitCtx, cancel := context.WithTimeout(ctx, s.queueTimeout)
	defer cancel()

	select {
	case s.semaphore <- struct{}{}:
		defer func() { <-s.semaphore }()
	case <-waitCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrBusy
	}

	startTime := time.Now()

	img, err := util.DecodeImage(data)
	if err != nil {
		return nil, err
	}

	opts := s.proc.Options()
	opts.Method = req.Method
	exp := s.export
	exp.OnWhite = exp.OnWhite || req.OnWhite
	if req.Watermark != "" {
		exp.Watermark = req.Watermark
	}

	out, outcome, err := s.proc.WithOptions(opts).Process(ctx, img, exp)
	if err != nil {
		return nil, err
	}

	id := ksuid.New().String()
	name := id + ".png"
	if err := util.SavePNG(out, filepath.Join(s.dir, name)); err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}

	result := &Result{
		ID:       id,
		MD5:      md5,
		File:     name,
		URL:      "/files/" + name,
		Width:    out.Bounds().Dx(),
		Height:   out.Bounds().Dy(),
		Method:   string(outcome.Method),
		Fallback: outcome.Fallback,
		CostMs:   time.Since(startTime).Milliseconds(),
	}
	if outcome.Reason != nil {
		result.Reason = outcome.Reason.Error()
	}

	util.Logger.Info("cutout processed",
		zap.String("md5", md5),
		zap.String("id", id),
		zap.String("method", result.Method),
		zap.Bool("fallback", result.Fallback),
		zap.Int64("cost_ms", result.CostMs))

	return result, nil
}

// Exists 缓存的结果文件可能已被清理
func (s *CutoutService) Exists(r *Result) bool {
	return fileExists(filepath.Join(s.dir, r.File))
}

// Dir 结果目录
func (s *CutoutService) Dir() string { return s.dir }
