package matte

import (
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	logitLow   = -0.05
	logitHigh  = 1.05
	rangeFloor = 1e-6
	snapLow    = 0.02
	snapHigh   = 0.98
)

// Normalize 把模型分辨率的原始输出变成 [0,255] 的字节 matte。
// 越界值视为 logits 先过 sigmoid，再做 min-max 归一化、对比度曲线和两端吸附。
func Normalize(plane []float32, w, h int, p Profile) *image.Gray {
	vals := make([]float64, w*h)
	for i := range vals {
		vals[i] = float64(plane[i])
	}

	lo, hi := floats.Min(vals), floats.Max(vals)
	if lo < logitLow || hi > logitHigh {
		for i, v := range vals {
			vals[i] = sigmoid(v)
		}
		lo, hi = floats.Min(vals), floats.Max(vals)
	}

	floats.AddConst(-lo, vals)
	floats.Scale(1/math.Max(hi-lo, rangeFloor), vals)

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := y * out.Stride
		for x := 0; x < w; x++ {
			v := Smoothstep(p.ContrastLo, p.ContrastHi, vals[y*w+x])
			if v < snapLow {
				v = 0
			} else if v > snapHigh {
				v = 1
			}
			out.Pix[row+x] = uint8(math.Round(v * 255))
		}
	}
	return out
}

// Smoothstep t²(3-2t)，t = clamp((x-e0)/(e1-e0), 0, 1)
func Smoothstep(e0, e1, x float64) float64 {
	t := clamp01((x - e0) / (e1 - e0))
	return t * t * (3 - 2*t)
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}
