package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chaos-io/cutout/util"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper 定时删除导出目录中超过保留期的 PNG
type Sweeper struct {
	dir       string
	retention time.Duration
	cron      *cron.Cron
	now       func() time.Time
}

func NewSweeper(dir string, retention time.Duration) *Sweeper {
	return &Sweeper{
		dir:       dir,
		retention: retention,
		cron:      cron.New(),
		now:       time.Now,
	}
}

// Start 按 cron 表达式调度清理，如 "@every 1h"
func (s *Sweeper) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", schedule, err)
	}
	s.cron.Start()
	return nil
}

// Stop 等待正在执行的清理结束
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Sweeper) run() {
	n, err := s.Sweep()
	if err != nil {
		util.Logger.Warn("sweep exports failed", zap.String("dir", s.dir), zap.Error(err))
		return
	}
	util.Logger.Info("exports swept", zap.String("dir", s.dir), zap.Int("removed", n))
}

// Sweep 立即清理一次，返回删除的文件数
func (s *Sweeper) Sweep() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	deadline := s.now().Add(-s.retention)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(deadline) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil {
			util.Logger.Warn("failed to delete export", zap.String("file", path), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
