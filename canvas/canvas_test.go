package canvas

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(w, h int, rect image.Rectangle, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestFindOpaqueBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		img  *image.NRGBA
		want image.Rectangle
	}{
		{
			name: "方块主体",
			img:  filled(20, 20, image.Rect(5, 5, 10, 10), color.NRGBA{A: 255}),
			want: image.Rect(5, 5, 10, 10),
		},
		{
			name: "全透明",
			img:  image.NewNRGBA(image.Rect(0, 0, 20, 20)),
			want: image.Rectangle{},
		},
		{
			name: "alpha 不超过阈值",
			img:  filled(8, 8, image.Rect(0, 0, 8, 8), color.NRGBA{A: OpaqueAlpha}),
			want: image.Rectangle{},
		},
		{
			name: "单像素",
			img:  filled(8, 8, image.Rect(7, 0, 8, 1), color.NRGBA{A: 11}),
			want: image.Rect(7, 0, 8, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := FindOpaqueBounds(tt.img)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMakeSquareCentered(t *testing.T) {
	t.Parallel()

	img := filled(400, 200, image.Rect(100, 50, 300, 150), color.NRGBA{R: 10, A: 255})
	out := MakeSquareCentered(img, 500, 0.2)

	require.Equal(t, image.Rect(0, 0, 500, 500), out.Bounds())
	b := FindOpaqueBounds(out)
	// 内容边长 500*(1-0.2)=400，200×100 的主体放大到 400×200
	assert.InDelta(t, 400, b.Dx(), 2)
	assert.InDelta(t, 200, b.Dy(), 2)
	assert.InDelta(t, 50, b.Min.X, 2)
	assert.InDelta(t, 150, b.Min.Y, 2)
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).A)
}

func TestMakeSquareCentered_InnerSizeLimits(t *testing.T) {
	t.Parallel()

	img := filled(50, 50, image.Rect(10, 10, 40, 40), color.NRGBA{A: 255})

	// 留白过大时内容边长不小于 200
	out := MakeSquareCentered(img, 300, 0.9)
	assert.InDelta(t, MinInnerSize, FindOpaqueBounds(out).Dx(), 2)

	// 画布小于 200 时内容边长不超过画布
	out = MakeSquareCentered(img, 120, 0.1)
	assert.Equal(t, image.Rect(0, 0, 120, 120), FindOpaqueBounds(out))
}

func TestMakeSquareCentered_EmptyIsWhite(t *testing.T) {
	t.Parallel()

	out := MakeSquareCentered(image.NewNRGBA(image.Rect(0, 0, 30, 30)), 64, 0.1)
	require.Equal(t, image.Rect(0, 0, 64, 64), out.Bounds())
	for _, p := range []image.Point{{0, 0}, {32, 32}, {63, 63}} {
		assert.Equal(t, color.NRGBA{255, 255, 255, 255}, out.NRGBAAt(p.X, p.Y))
	}
}

func TestCompositeOnWhite(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.SetNRGBA(0, 0, color.NRGBA{A: 0})
	img.SetNRGBA(1, 0, color.NRGBA{A: 255})
	img.SetNRGBA(2, 0, color.NRGBA{R: 255, A: 128})

	out := CompositeOnWhite(img)
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, out.NRGBAAt(1, 0))
	assert.Equal(t, color.NRGBA{255, 127, 127, 255}, out.NRGBAAt(2, 0))
}

func TestForcePureWhiteOutsideBounds(t *testing.T) {
	t.Parallel()

	img := filled(6, 6, image.Rect(0, 0, 6, 6), color.NRGBA{R: 200, G: 200, B: 200, A: 255})
	ForcePureWhiteOutsideBounds(img, image.Rect(2, 2, 4, 4))

	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, img.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, img.NRGBAAt(4, 3))
	assert.Equal(t, color.NRGBA{200, 200, 200, 255}, img.NRGBAAt(2, 2))
	assert.Equal(t, color.NRGBA{200, 200, 200, 255}, img.NRGBAAt(3, 3))
}
