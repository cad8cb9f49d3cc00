// Package pipeline 串起一帧的抠图流程：方法选择、神经网络抠图、
// 失败时退回阈值抠图，以及正方形画布导出。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/chaos-io/cutout/matte"
	"github.com/chaos-io/cutout/matte/estimator"
	"github.com/chaos-io/cutout/util"
	"go.uber.org/zap"
)

var (
	// ErrEstimatorUnavailable 模型未配置或加载失败
	ErrEstimatorUnavailable = errors.New("matte estimator unavailable")
	// ErrInference 推理调用失败或输出不可用
	ErrInference = errors.New("matte inference failed")
	// ErrAIDisallowed 请求了神经网络抠图但当前不允许使用
	ErrAIDisallowed = errors.New("neural matte not allowed")
)

type Method string

const (
	MethodThreshold Method = "threshold"
	MethodNeural    Method = "neural"
	// MethodExisting 输入已带透明通道，沿用原有 alpha
	MethodExisting Method = "existing"
)

// ParseMethod 空字符串视为阈值抠图
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", MethodThreshold:
		return MethodThreshold, nil
	case MethodNeural:
		return MethodNeural, nil
	}
	return "", fmt.Errorf("unknown matte method %q", s)
}

type Options struct {
	Method    Method
	AIAllowed bool

	// 阈值抠图参数
	Threshold int
	Feather   int

	// 神经网络抠图的羽化量
	FeatherAmount float64
	// 腐蚀次数，<= 0 使用家族默认值
	ErodeIterations int

	// 输入最长边上限，<= 0 不缩放
	MaxSide int
	// 输入已有透明信息时跳过抠图
	RespectAlpha bool
}

func DefaultOptions() Options {
	return Options{
		Method:        MethodThreshold,
		AIAllowed:     true,
		Threshold:     240,
		Feather:       12,
		FeatherAmount: 16,
	}
}

// Outcome 一帧抠图的结果。Fallback 为真时 Reason 记录神经网络路径失败的原因。
type Outcome struct {
	Method   Method
	Fallback bool
	Reason   error
}

// family 同一个模型句柄对应的家族参数和张量读取方式
type family struct {
	profile matte.Profile
	handle  *estimator.Handle

	once      sync.Once
	reader    matte.Reader
	readerErr error
}

// resolveReader 每个模型只按声明的输出秩解析一次
func (f *family) resolveReader(est estimator.Estimator) (matte.Reader, error) {
	f.once.Do(func() {
		f.reader, f.readerErr = matte.NewReader(est.OutputRank())
	})
	return f.reader, f.readerErr
}

type Processor struct {
	fam  *family
	opts Options
}

// NewProcessor handle 可以为 nil，此时神经网络抠图总是退回阈值抠图
func NewProcessor(handle *estimator.Handle, profile matte.Profile, opts Options) *Processor {
	return &Processor{
		fam:  &family{profile: profile, handle: handle},
		opts: opts,
	}
}

// WithOptions 返回共享同一模型句柄、使用新参数的 Processor
func (p *Processor) WithOptions(opts Options) *Processor {
	return &Processor{fam: p.fam, opts: opts}
}

func (p *Processor) Options() Options { return p.opts }

func (p *Processor) Profile() matte.Profile { return p.fam.profile }

// ApplyMatte 按配置的方法原地计算 alpha。神经网络路径的任何失败都会
// 退回阈值抠图并记录在 Outcome 中，唯一返回的错误是 ctx 已取消。
func (p *Processor) ApplyMatte(ctx context.Context, img *image.NRGBA) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	defer util.Trace("apply matte", zap.String("method", string(p.opts.Method)))()

	if p.opts.RespectAlpha && hasUsefulAlpha(img) {
		return Outcome{Method: MethodExisting}, nil
	}

	var reason error
	if p.opts.Method == MethodNeural {
		if !p.opts.AIAllowed {
			reason = ErrAIDisallowed
		} else if reason = p.ApplyNeuralMatte(ctx, img, p.opts.FeatherAmount); reason == nil {
			return Outcome{Method: MethodNeural}, nil
		}
		util.Logger.Warn("neural matte fallback",
			zap.String("family", p.fam.profile.Name),
			zap.Error(reason),
		)
	}

	matte.ApplyThreshold(img, p.opts.Threshold, p.opts.Feather)
	return Outcome{Method: MethodThreshold, Fallback: reason != nil, Reason: reason}, nil
}

// ApplyNeuralMatte 推理 → 归一化 → 清理 → 羽化上采样 → 边缘收紧 → 合成 alpha。
// 出错时 img 保持不变。
func (p *Processor) ApplyNeuralMatte(ctx context.Context, img *image.NRGBA, featherAmount float64) error {
	if p.fam.handle == nil {
		return ErrEstimatorUnavailable
	}
	est, release, err := p.fam.handle.Acquire()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEstimatorUnavailable, err)
	}
	defer release()

	read, err := p.fam.resolveReader(est)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEstimatorUnavailable, err)
	}

	profile := p.fam.profile
	size := profile.InputSize(est.InputSize())
	input := resizeExact(img, size)

	t, err := est.Estimate(ctx, input, size.X, size.Y, profile.Normalization)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInference, err)
	}
	plane, w, h, err := read(t)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInference, err)
	}

	m := matte.Normalize(plane, w, h, profile)
	erode := p.opts.ErodeIterations
	if erode <= 0 {
		erode = profile.ErodeIterations
	}
	matte.Refine(m, erode)

	full := matte.Upsample(m, img.Bounds().Size(), featherAmount, profile)
	matte.EdgeSnap(full, matte.EdgeSnapLow, matte.EdgeSnapHigh, matte.EdgeSnapGamma)

	return matte.ApplyAlpha(img, full, profile.Dehalo)
}

// Process 解码后的一帧：转换、限制尺寸、抠图、导出。
// src 本身是原点为 (0,0) 的 *image.NRGBA 且无需缩放时会被原地修改。
func (p *Processor) Process(ctx context.Context, src image.Image, exp ExportOptions) (*image.NRGBA, Outcome, error) {
	img := resizeWithinMax(toNRGBA(src), p.opts.MaxSide)

	outcome, err := p.ApplyMatte(ctx, img)
	if err != nil {
		return nil, outcome, err
	}

	out, err := p.Export(ctx, img, exp)
	if err != nil {
		return nil, outcome, err
	}
	return out, outcome, nil
}
