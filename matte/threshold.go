package matte

import (
	"image"
	"math"
)

// ApplyThreshold 近白背景的软抠图，原地修改 alpha。
// w = min(R,G,B)，w >= threshold 完全透明；
// feather > 0 时 [threshold-feather, threshold) 区间线性过渡。
func ApplyThreshold(img *image.NRGBA, threshold, feather int) {
	b := img.Bounds()
	t := float64(threshold)
	f := float64(feather)

	for y := 0; y < b.Dy(); y++ {
		row := y * img.Stride
		for x := 0; x < b.Dx(); x++ {
			i := row + x*4
			w := min(img.Pix[i], img.Pix[i+1], img.Pix[i+2])

			switch {
			case int(w) >= threshold:
				img.Pix[i+3] = 0
			case feather > 0 && int(w) >= threshold-feather:
				k := clamp01((t - float64(w)) / f)
				img.Pix[i+3] = uint8(math.Round(float64(img.Pix[i+3]) * k))
			}
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
