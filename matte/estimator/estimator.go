// Package estimator 定义抠图模型的推理接口以及它的几种实现。
// 实现只负责把图像变成原始 matte 张量，归一化和清理在 matte 包里完成。
package estimator

import (
	"context"
	"errors"
	"image"

	"github.com/chaos-io/cutout/matte"
)

var (
	ErrUnavailable = errors.New("matte estimator unavailable")
	ErrClosed      = errors.New("matte estimator handle closed")
)

type Estimator interface {
	// Estimate 对已经缩放到 width×height 的图像做推理
	Estimate(ctx context.Context, img image.Image, width, height int, norm matte.Normalization) (*matte.Tensor, error)
	// InputSize 模型元数据声明的输入尺寸，未知时为零值
	InputSize() image.Point
	// OutputRank 模型声明的输出秩 (2/3/4)
	OutputRank() int
	Close() error
}
