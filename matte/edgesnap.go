package matte

import (
	"image"
	"math"
)

// 上采样之后重新收紧被插值模糊的边缘
const (
	EdgeSnapLow   = 55
	EdgeSnapHigh  = 205
	EdgeSnapGamma = 0.75
)

// EdgeSnap 单调的 levels + gamma 映射，原地修改
func EdgeSnap(m *image.Gray, lo, hi, gamma float64) {
	lut := edgeSnapLUT(lo, hi, gamma)
	b := m.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := m.Pix[y*m.Stride : y*m.Stride+b.Dx()]
		for x, v := range row {
			row[x] = lut[v]
		}
	}
}

func edgeSnapLUT(lo, hi, gamma float64) [256]uint8 {
	var lut [256]uint8
	for i := range 256 {
		a := clamp01((float64(i) - lo) / (hi - lo))
		if gamma != 1 {
			a = math.Pow(a, gamma)
		}
		lut[i] = uint8(math.Round(a * 255))
	}
	return lut
}
