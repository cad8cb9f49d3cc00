package matte

import (
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

const (
	// 小于它的模糊半径没有可见效果
	minBlurRadius = 0.01
	// 模糊半径覆盖约 2σ
	radiusPerSigma = 2
)

// Upsample 按家族参数羽化 matte，再用 Catmull-Rom 放大到原图尺寸
func Upsample(m *image.Gray, size image.Point, feather float64, p Profile) *image.Gray {
	var src image.Image = m
	if radius := p.FeatherRadius(feather); radius >= minBlurRadius {
		src = imaging.Blur(m, blurSigma(radius))
	}

	dst := image.NewGray(image.Rect(0, 0, size.X, size.Y))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// blurSigma 把羽化半径换算成 imaging.Blur 需要的高斯 σ
func blurSigma(radius float64) float64 {
	return radius / radiusPerSigma
}
