package matte

import (
	"errors"
	"image"
	"math"
)

// ErrSizeMismatch matte 与图像尺寸不一致
var ErrSizeMismatch = errors.New("mask size does not match image")

// 去白边时还原色与原色的混合比例
const dehaloWeight = 0.85

// ApplyAlpha 把 matte 乘进图像的 alpha。dehalo 为真时，对半透明像素
// 按白色拍摄背景反推未混合的颜色，消除边缘白晕。
func ApplyAlpha(img *image.NRGBA, mask *image.Gray, dehalo bool) error {
	b := img.Bounds()
	if mask.Bounds().Size() != b.Size() {
		return ErrSizeMismatch
	}

	for y := 0; y < b.Dy(); y++ {
		row := y * img.Stride
		mrow := y * mask.Stride
		for x := 0; x < b.Dx(); x++ {
			i := row + x*4
			na := uint8(math.Round(float64(img.Pix[i+3]) * float64(mask.Pix[mrow+x]) / 255))
			img.Pix[i+3] = na

			if !dehalo || na == 0 || na == 255 {
				continue
			}
			a := float64(na) / 255
			for c := 0; c < 3; c++ {
				img.Pix[i+c] = dehaloChannel(img.Pix[i+c], a)
			}
		}
	}
	return nil
}

// dehaloChannel c = a*u + (1-a)*255，反解 u 后与原色按 85/15 混合
func dehaloChannel(orig uint8, a float64) uint8 {
	o := float64(orig)
	u := (o - (1-a)*255) / a
	u = math.Min(math.Max(u, 0), 255)
	return uint8(math.Round(dehaloWeight*u + (1-dehaloWeight)*o))
}
