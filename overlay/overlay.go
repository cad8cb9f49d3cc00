// Package overlay 在主体轮廓内平铺半透明文字水印。
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	// MaskFloor mask 低于该值的位置不绘制水印
	MaskFloor = 10

	minFontSize   = 26
	fontDivisor   = 6.5
	minStepX      = 140
	minStepY      = 90
	stepXFactor   = 1.25
	stepYFactor   = 1.65
	outlineOffset = 2
	marginRatio   = 0.03
)

// Style 水印颜色：深色描边 + 浅色填充
type Style struct {
	Fill    color.NRGBA
	Outline color.NRGBA
}

var DefaultStyle = Style{
	Fill:    color.NRGBA{R: 255, G: 255, B: 255, A: 255},
	Outline: color.NRGBA{R: 0, G: 0, B: 0, A: 255},
}

var boldFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(gobold.TTF)
})

// ParseColors 解析十六进制颜色，如 "#ffffff"
func ParseColors(fill, outline string) (Style, error) {
	f, err := colorful.Hex(fill)
	if err != nil {
		return Style{}, fmt.Errorf("parse fill color %q: %w", fill, err)
	}
	o, err := colorful.Hex(outline)
	if err != nil {
		return Style{}, fmt.Errorf("parse outline color %q: %w", outline, err)
	}
	return Style{Fill: toNRGBA(f), Outline: toNRGBA(o)}, nil
}

func toNRGBA(c colorful.Color) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// ExpandBounds 按图片宽度的 3% 向外扩展主体包围盒，并裁剪到图片范围内
func ExpandBounds(bounds, imageRect image.Rectangle) image.Rectangle {
	if bounds.Empty() {
		return image.Rectangle{}
	}
	margin := int(math.Round(float64(imageRect.Dx()) * marginRatio))
	return bounds.Inset(-margin).Intersect(imageRect)
}

// ApplyMaskedOverlay 使用默认配色绘制水印，见 ApplyMaskedOverlayStyle
func ApplyMaskedOverlay(img *image.NRGBA, mask *image.Gray, bounds image.Rectangle, text string, opacityPercent float64) error {
	return ApplyMaskedOverlayStyle(img, mask, bounds, text, opacityPercent, DefaultStyle)
}

// ApplyMaskedOverlayStyle 在 bounds 内砖块式平铺文字，再按 mask 裁剪后合成到 img 上
//
//	bounds 之外、mask < 10 的位置水印完全透明
//	其余位置水印 alpha 乘以 mask/255
func ApplyMaskedOverlayStyle(img *image.NRGBA, mask *image.Gray, bounds image.Rectangle, text string, opacityPercent float64, style Style) error {
	bounds = bounds.Intersect(img.Bounds())
	if text == "" || bounds.Empty() || opacityPercent <= 0 {
		return nil
	}

	layer, err := buildOverlay(img.Bounds(), bounds, text, opacityPercent, style)
	if err != nil {
		return err
	}
	clipOverlay(layer, mask, bounds)

	draw.Draw(img, img.Bounds(), layer, img.Bounds().Min, draw.Over)
	return nil
}

// buildOverlay 生成与图片同尺寸的透明图层，在 bounds 范围内平铺文字
func buildOverlay(rect, bounds image.Rectangle, text string, opacityPercent float64, style Style) (*image.NRGBA, error) {
	f, err := boldFont()
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}

	minDim := min(bounds.Dx(), bounds.Dy())
	size := math.Max(minFontSize, float64(minDim)/fontDivisor)
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("new font face: %w", err)
	}
	defer func() { _ = face.Close() }()

	metrics := face.Metrics()
	textW := font.MeasureString(face, text).Ceil()
	textH := (metrics.Ascent + metrics.Descent).Ceil()
	ascent := metrics.Ascent.Ceil()

	stepX := max(minStepX, int(math.Round(stepXFactor*float64(textW))))
	stepY := max(minStepY, int(math.Round(stepYFactor*float64(textH))))

	alpha := uint8(math.Round(255 * math.Min(opacityPercent, 100) / 100))
	outline := style.Outline
	outline.A = scale(outline.A, alpha)
	fill := style.Fill
	fill.A = scale(fill.A, alpha)

	layer := image.NewNRGBA(rect)
	d := &font.Drawer{Dst: layer, Face: face}

	for row, y := 0, bounds.Min.Y; y < bounds.Max.Y; row, y = row+1, y+stepY {
		x0 := bounds.Min.X - stepX
		if row%2 == 1 {
			x0 += stepX / 2
		}
		for x := x0; x < bounds.Max.X; x += stepX {
			d.Src = image.NewUniform(outline)
			d.Dot = fixed.P(x+outlineOffset, y+ascent+outlineOffset)
			d.DrawString(text)

			d.Src = image.NewUniform(fill)
			d.Dot = fixed.P(x, y+ascent)
			d.DrawString(text)
		}
	}
	return layer, nil
}

// clipOverlay bounds 外或 mask < MaskFloor 处清零，其余 alpha 乘 mask/255
func clipOverlay(layer *image.NRGBA, mask *image.Gray, bounds image.Rectangle) {
	b := layer.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := layer.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x, i = x+1, i+4 {
			if layer.Pix[i+3] == 0 {
				continue
			}
			m := mask.GrayAt(x, y).Y
			if m < MaskFloor || !image.Pt(x, y).In(bounds) {
				clear(layer.Pix[i : i+4])
				continue
			}
			layer.Pix[i+3] = scale(layer.Pix[i+3], m)
		}
	}
}

func scale(a, m uint8) uint8 {
	return uint8((int(a)*int(m) + 127) / 255)
}
