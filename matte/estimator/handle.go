package estimator

import (
	"sync"

	"github.com/chaos-io/cutout/util"
	"go.uber.org/zap"
)

// Loader 创建一个模型实例，只会被调用一次
type Loader func() (Estimator, error)

// Handle 进程内共享的模型句柄：第一次 Acquire 时加载，引用计数，
// Close 之后等最后一个使用者释放再销毁。加载失败会被记住，
// 之后的 Acquire 直接返回同一个错误。
type Handle struct {
	name string
	load Loader

	mu     sync.Mutex
	est    Estimator
	err    error
	loaded bool
	refs   int
	closed bool
}

func NewHandle(name string, load Loader) *Handle {
	return &Handle{name: name, load: load}
}

// Acquire 返回模型实例和对应的释放函数
func (h *Handle) Acquire() (Estimator, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, nil, ErrClosed
	}
	if !h.loaded {
		h.loaded = true
		if h.load == nil {
			h.err = ErrUnavailable
		} else {
			done := util.Trace("load estimator", zap.String("family", h.name))
			h.est, h.err = h.load()
			done()
		}
		if h.err != nil {
			util.Logger.Warn("estimator load failed", zap.String("family", h.name), zap.Error(h.err))
		}
	}
	if h.err != nil {
		return nil, nil, h.err
	}

	h.refs++
	var once sync.Once
	return h.est, func() { once.Do(h.release) }, nil
}

func (h *Handle) release() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.refs--
	if h.closed && h.refs == 0 {
		h.dispose()
	}
}

// Close 在进程退出时调用
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	if h.refs == 0 {
		return h.dispose()
	}
	return nil
}

func (h *Handle) dispose() error {
	if h.est == nil {
		return nil
	}
	err := h.est.Close()
	h.est = nil
	if err != nil {
		util.Logger.Warn("estimator close failed", zap.String("family", h.name), zap.Error(err))
	}
	return err
}
