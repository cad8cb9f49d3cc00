package pipeline

import (
	"image"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// hasUsefulAlpha 检查 alpha 通道是否真的包含透明信息
// 只要存在非 255（非完全不透明），就认为已经抠过图
func hasUsefulAlpha(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 255 {
			return true
		}
	}
	return false
}

// resizeWithinMax 最长边超过 maxSize 时等比缩小，maxSize <= 0 不限制
func resizeWithinMax(img *image.NRGBA, maxSize int) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	longest := max(w, h)
	if maxSize <= 0 || longest <= maxSize {
		return img
	}

	scale := float64(maxSize) / float64(longest)
	newW := max(1, int(float64(w)*scale))
	newH := max(1, int(float64(h)*scale))

	return toNRGBA(resize.Resize(uint(newW), uint(newH), img, resize.Lanczos3))
}

// resizeExact 缩放到模型输入分辨率，不保持比例
func resizeExact(img *image.NRGBA, size image.Point) image.Image {
	return resize.Resize(uint(size.X), uint(size.Y), img, resize.Lanczos3)
}

// toNRGBA 转为原点在 (0,0) 的 NRGBA，本身满足时原样返回
func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if nrgba, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return nrgba
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// alphaMask 取出 alpha 通道作为单通道 mask
func alphaMask(img *image.NRGBA) *image.Gray {
	b := img.Bounds()
	mask := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		si := img.PixOffset(b.Min.X, y) + 3
		di := mask.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x, si, di = x+1, si+4, di+1 {
			mask.Pix[di] = img.Pix[si]
		}
	}
	return mask
}
