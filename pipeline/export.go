package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/chaos-io/cutout/canvas"
	"github.com/chaos-io/cutout/overlay"
)

type ExportOptions struct {
	// 正方形画布边长
	Size int
	// 四周留白比例
	Padding float64
	// 合成到白底
	OnWhite bool

	// 水印文字，空字符串不加水印
	Watermark        string
	WatermarkOpacity float64
	WatermarkStyle   overlay.Style
}

func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Size:             1024,
		Padding:          0.08,
		WatermarkOpacity: 35,
		WatermarkStyle:   overlay.DefaultStyle,
	}
}

// Export 把抠好的图放到正方形画布上，按需加水印、合成白底
func (p *Processor) Export(ctx context.Context, img *image.NRGBA, opts ExportOptions) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := canvas.MakeSquareCentered(img, opts.Size, opts.Padding)
	if canvas.FindOpaqueBounds(img).Empty() {
		// 没有主体，已经是纯白画布
		return out, nil
	}

	if opts.Watermark != "" {
		bounds := overlay.ExpandBounds(canvas.FindOpaqueBounds(out), out.Bounds())
		err := overlay.ApplyMaskedOverlayStyle(out, alphaMask(out), bounds, opts.Watermark, opts.WatermarkOpacity, opts.WatermarkStyle)
		if err != nil {
			return nil, fmt.Errorf("apply watermark: %w", err)
		}
	}

	if opts.OnWhite {
		bounds := canvas.FindOpaqueBounds(out)
		out = canvas.CompositeOnWhite(out)
		canvas.ForcePureWhiteOutsideBounds(out, bounds)
	}
	return out, nil
}
