package matte

import (
	"errors"
	"fmt"
)

// ErrTensorShape 推理输出的形状与声明不符
var ErrTensorShape = errors.New("unexpected matte tensor shape")

// Tensor 模型分辨率下的原始推理输出，值为概率或 logits
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Reader 从张量中取出 batch 0 / channel 0 的平面
type Reader func(t *Tensor) (plane []float32, w, h int, err error)

// NewReader 按模型声明的输出秩选定读取方式，每个模型只解析一次。
// 支持 H×W、1×H×W、1×1×H×W 三种布局。
func NewReader(rank int) (Reader, error) {
	if rank < 2 || rank > 4 {
		return nil, fmt.Errorf("%w: rank %d", ErrTensorShape, rank)
	}
	hDim, wDim := rank-2, rank-1

	return func(t *Tensor) ([]float32, int, int, error) {
		if t == nil || len(t.Shape) != rank {
			return nil, 0, 0, fmt.Errorf("%w: want rank %d", ErrTensorShape, rank)
		}
		n := int64(len(t.Data))
		h, w := t.Shape[hDim], t.Shape[wDim]
		// 先逐维比较再相乘，避免声明的超大尺寸溢出
		if w <= 0 || h <= 0 || w > n || h > n || w > n/h {
			return nil, 0, 0, fmt.Errorf("%w: %v with %d values", ErrTensorShape, t.Shape, len(t.Data))
		}
		// batch 0 / channel 0 总是数据开头的第一个平面
		return t.Data[:w*h], int(w), int(h), nil
	}, nil
}
