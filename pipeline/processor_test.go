package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"
	"testing"

	"github.com/chaos-io/cutout/matte"
	"github.com/chaos-io/cutout/matte/estimator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// squareEstimator 输出中心为前景方块的概率图
type squareEstimator struct {
	size  int
	rank  int
	err   error
	calls atomic.Int32
	ranks atomic.Int32

	gotW, gotH int
	gotNorm    matte.Normalization
}

func (s *squareEstimator) Estimate(_ context.Context, img image.Image, width, height int, norm matte.Normalization) (*matte.Tensor, error) {
	s.calls.Add(1)
	s.gotW, s.gotH, s.gotNorm = width, height, norm
	if s.err != nil {
		return nil, s.err
	}

	data := make([]float32, s.size*s.size)
	q := s.size / 4
	for y := q; y < s.size-q; y++ {
		for x := q; x < s.size-q; x++ {
			data[y*s.size+x] = 1
		}
	}
	shape := []int64{1, 1, int64(s.size), int64(s.size)}
	return &matte.Tensor{Shape: shape[4-s.rank:], Data: data}, nil
}

func (s *squareEstimator) InputSize() image.Point { return image.Pt(s.size, s.size) }

func (s *squareEstimator) OutputRank() int {
	s.ranks.Add(1)
	return 4
}

func (s *squareEstimator) Close() error { return nil }

func newHandle(est estimator.Estimator) *estimator.Handle {
	return estimator.NewHandle("test", func() (estimator.Estimator, error) { return est, nil })
}

// blackOnWhite 白底上一个黑色方块
func blackOnWhite(w, h int, subject image.Rectangle) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{255, 255, 255, 255}
			if image.Pt(x, y).In(subject) {
				c = color.NRGBA{0, 0, 0, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestParseMethod(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Method{"": MethodThreshold, "threshold": MethodThreshold, "neural": MethodNeural} {
		got, err := ParseMethod(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMethod("grabcut")
	assert.Error(t, err)
}

func TestApplyMatte_ThresholdRoundTrip(t *testing.T) {
	t.Parallel()

	img := blackOnWhite(40, 40, image.Rect(10, 10, 30, 30))
	opts := DefaultOptions()
	opts.Feather = 0

	outcome, err := NewProcessor(nil, matte.U2Net, opts).ApplyMatte(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Method: MethodThreshold}, outcome)

	assert.Equal(t, uint8(0), img.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(0), img.NRGBAAt(39, 20).A)
	assert.Equal(t, uint8(255), img.NRGBAAt(10, 10).A)
	assert.Equal(t, uint8(255), img.NRGBAAt(20, 20).A)
}

func TestApplyMatte_Fallback(t *testing.T) {
	t.Parallel()

	boom := errors.New("session run failed")
	tests := []struct {
		name      string
		handle    *estimator.Handle
		aiAllowed bool
		wantErr   error
	}{
		{"不允许使用 AI", newHandle(&squareEstimator{size: 64, rank: 4}), false, ErrAIDisallowed},
		{"未配置模型", nil, true, ErrEstimatorUnavailable},
		{
			"模型加载失败",
			estimator.NewHandle("broken", func() (estimator.Estimator, error) { return nil, estimator.ErrUnavailable }),
			true,
			ErrEstimatorUnavailable,
		},
		{"推理失败", newHandle(&squareEstimator{size: 64, rank: 4, err: boom}), true, ErrInference},
		{"输出形状不对", newHandle(&squareEstimator{size: 64, rank: 2}), true, matte.ErrTensorShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := DefaultOptions()
			opts.Method = MethodNeural
			opts.AIAllowed = tt.aiAllowed
			opts.Feather = 0

			img := blackOnWhite(40, 40, image.Rect(10, 10, 30, 30))
			outcome, err := NewProcessor(tt.handle, matte.U2Net, opts).ApplyMatte(context.Background(), img)
			require.NoError(t, err)

			assert.Equal(t, MethodThreshold, outcome.Method)
			assert.True(t, outcome.Fallback)
			assert.ErrorIs(t, outcome.Reason, tt.wantErr)

			// 退回阈值抠图
			assert.Equal(t, uint8(0), img.NRGBAAt(0, 0).A)
			assert.Equal(t, uint8(255), img.NRGBAAt(20, 20).A)
		})
	}
}

func TestApplyNeuralMatte(t *testing.T) {
	t.Parallel()

	est := &squareEstimator{size: 64, rank: 4}
	p := NewProcessor(newHandle(est), matte.U2Net, Options{Method: MethodNeural, AIAllowed: true})

	img := image.NewNRGBA(image.Rect(0, 0, 128, 128))
	for i := 0; i < len(img.Pix); i += 4 {
		copy(img.Pix[i:i+4], []uint8{120, 130, 140, 255})
	}

	outcome, err := p.ApplyMatte(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Method: MethodNeural}, outcome)

	assert.Equal(t, 64, est.gotW)
	assert.Equal(t, 64, est.gotH)
	assert.Equal(t, matte.NormMeanStd, est.gotNorm)

	assert.Equal(t, uint8(255), img.NRGBAAt(64, 64).A)
	assert.Equal(t, uint8(0), img.NRGBAAt(2, 2).A)
	assert.Equal(t, uint8(0), img.NRGBAAt(125, 64).A)
	assert.Equal(t, color.NRGBA{120, 130, 140, 255}, img.NRGBAAt(64, 64))

	// 张量读取方式只解析一次
	require.NoError(t, p.ApplyNeuralMatte(context.Background(), img, 0))
	assert.Equal(t, int32(2), est.calls.Load())
	assert.Equal(t, int32(1), est.ranks.Load())
}

func TestApplyNeuralMatte_LeavesImageOnError(t *testing.T) {
	t.Parallel()

	est := &squareEstimator{rank: 4, err: errors.New("timeout")}
	p := NewProcessor(newHandle(est), matte.ISNet, DefaultOptions())

	img := blackOnWhite(20, 20, image.Rect(5, 5, 15, 15))
	before := append([]uint8(nil), img.Pix...)

	err := p.ApplyNeuralMatte(context.Background(), img, 8)
	assert.ErrorIs(t, err, ErrInference)
	assert.Equal(t, before, img.Pix)
	// 模型未声明输入尺寸时使用家族默认值
	assert.Equal(t, matte.ISNet.DefaultInputSize, est.gotW)
}

func TestApplyMatte_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	img := blackOnWhite(20, 20, image.Rect(5, 5, 15, 15))
	before := append([]uint8(nil), img.Pix...)

	_, err := NewProcessor(nil, matte.U2Net, DefaultOptions()).ApplyMatte(ctx, img)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, img.Pix)
}

func TestApplyMatte_RespectAlpha(t *testing.T) {
	t.Parallel()

	img := blackOnWhite(20, 20, image.Rect(5, 5, 15, 15))
	img.SetNRGBA(0, 0, color.NRGBA{255, 255, 255, 0})

	opts := DefaultOptions()
	opts.RespectAlpha = true
	outcome, err := NewProcessor(nil, matte.U2Net, opts).ApplyMatte(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, MethodExisting, outcome.Method)
	assert.Equal(t, uint8(255), img.NRGBAAt(1, 1).A)
}

// oversizedEstimator 声明的输出尺寸远大于实际数据
type oversizedEstimator struct{}

func (oversizedEstimator) Estimate(context.Context, image.Image, int, int, matte.Normalization) (*matte.Tensor, error) {
	return &matte.Tensor{Shape: []int64{1, 1, 1 << 32, 1 << 32}}, nil
}
func (oversizedEstimator) InputSize() image.Point { return image.Pt(64, 64) }
func (oversizedEstimator) OutputRank() int        { return 4 }
func (oversizedEstimator) Close() error           { return nil }

func TestApplyMatte_OversizedTensorFallsBack(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.Method = MethodNeural
	opts.Feather = 0
	p := NewProcessor(newHandle(oversizedEstimator{}), matte.U2Net, opts)

	img := blackOnWhite(40, 40, image.Rect(10, 10, 30, 30))
	var (
		outcome Outcome
		err     error
	)
	require.NotPanics(t, func() {
		outcome, err = p.ApplyMatte(context.Background(), img)
	})
	require.NoError(t, err)
	assert.True(t, outcome.Fallback)
	assert.ErrorIs(t, outcome.Reason, ErrInference)
	assert.ErrorIs(t, outcome.Reason, matte.ErrTensorShape)
	assert.Equal(t, uint8(0), img.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(255), img.NRGBAAt(20, 20).A)
}
