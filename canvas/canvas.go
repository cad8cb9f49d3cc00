// Package canvas 负责抠图结果的构图：主体包围盒、正方形居中画布、白底合成。
package canvas

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

const (
	// OpaqueAlpha alpha 大于该值的像素算作主体
	OpaqueAlpha = 10
	// MinInnerSize 主体在正方形画布中的最小边长
	MinInnerSize = 200
	// MaxPadding 留白比例上限
	MaxPadding = 0.45
)

// FindOpaqueBounds 计算 alpha > OpaqueAlpha 的像素包围盒
// 没有任何主体像素时返回 image.Rectangle{}
func FindOpaqueBounds(img *image.NRGBA) image.Rectangle {
	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1

	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y) + 3
		for x := b.Min.X; x < b.Max.X; x, i = x+1, i+4 {
			if img.Pix[i] <= OpaqueAlpha {
				continue
			}
			minX = min(minX, x)
			maxX = max(maxX, x)
			minY = min(minY, y)
			maxY = max(maxY, y)
		}
	}

	if maxX < minX {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1).Intersect(b)
}

// MakeSquareCentered 把主体等比缩放后居中放到 size×size 的透明画布上
// padding 为四周留白比例，限制在 [0, 0.45]
// 找不到主体时返回不透明的纯白画布
func MakeSquareCentered(img *image.NRGBA, size int, padding float64) *image.NRGBA {
	size = max(size, 1)
	bounds := FindOpaqueBounds(img)
	if bounds.Empty() {
		return whiteCanvas(size)
	}

	padding = math.Min(math.Max(padding, 0), MaxPadding)
	inner := int(math.Round(float64(size) * (1 - padding)))
	inner = min(max(inner, MinInnerSize), size)

	bw, bh := bounds.Dx(), bounds.Dy()
	scale := float64(inner) / float64(max(bw, bh))
	nw := max(1, int(math.Round(float64(bw)*scale)))
	nh := max(1, int(math.Round(float64(bh)*scale)))

	subject := img.SubImage(bounds)
	resized := imaging.Resize(subject, nw, nh, imaging.Lanczos)

	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	off := image.Pt((size-nw)/2, (size-nh)/2)
	draw.Draw(dst, image.Rectangle{Min: off, Max: off.Add(image.Pt(nw, nh))}, resized, image.Point{}, draw.Src)
	return dst
}

// CompositeOnWhite 把带 alpha 的图合成到白底上，输出完全不透明
func CompositeOnWhite(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := 0; y < b.Dy(); y++ {
		si := img.PixOffset(b.Min.X, b.Min.Y+y)
		di := dst.PixOffset(0, y)
		for x := 0; x < b.Dx(); x, si, di = x+1, si+4, di+4 {
			a := float64(img.Pix[si+3]) / 255
			for c := 0; c < 3; c++ {
				v := float64(img.Pix[si+c])*a + 255*(1-a)
				dst.Pix[di+c] = uint8(math.Round(v))
			}
			dst.Pix[di+3] = 255
		}
	}
	return dst
}

// ForcePureWhiteOutsideBounds 把 rect 之外的像素全部置为不透明纯白
func ForcePureWhiteOutsideBounds(img *image.NRGBA, rect image.Rectangle) {
	b := img.Bounds()
	rect = rect.Intersect(b)
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !image.Pt(x, y).In(rect) {
				img.SetNRGBA(x, y, white)
			}
		}
	}
}

func whiteCanvas(size int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	return dst
}
