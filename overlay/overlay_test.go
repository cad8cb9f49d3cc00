package overlay

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandBounds(t *testing.T) {
	t.Parallel()

	rect := image.Rect(0, 0, 200, 100)
	tests := []struct {
		name   string
		bounds image.Rectangle
		want   image.Rectangle
	}{
		{"居中扩展 6px", image.Rect(50, 30, 150, 70), image.Rect(44, 24, 156, 76)},
		{"贴边时裁剪", image.Rect(0, 0, 200, 100), rect},
		{"空包围盒", image.Rectangle{}, image.Rectangle{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExpandBounds(tt.bounds, rect))
		})
	}
}

func TestParseColors(t *testing.T) {
	t.Parallel()

	style, err := ParseColors("#ff8000", "#102030")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{255, 128, 0, 255}, style.Fill)
	assert.Equal(t, color.NRGBA{16, 32, 48, 255}, style.Outline)

	_, err = ParseColors("orange", "#000000")
	assert.ErrorContains(t, err, "fill")
	_, err = ParseColors("#000000", "#zz")
	assert.ErrorContains(t, err, "outline")
}

func TestBuildOverlay_TilesText(t *testing.T) {
	t.Parallel()

	rect := image.Rect(0, 0, 400, 400)
	layer, err := buildOverlay(rect, rect, "SAMPLE", 100, DefaultStyle)
	require.NoError(t, err)

	// 行距至少 90px，400px 高度内有多行文字
	rows := 0
	for y := 0; y < 400; y++ {
		for x := 0; x < 400; x++ {
			if layer.NRGBAAt(x, y).A > 0 {
				rows++
				break
			}
		}
	}
	assert.Greater(t, rows, 60)
}

func TestApplyMaskedOverlay_NeverOutsideMask(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		bounds  image.Rectangle
		text    string
		opacity float64
	}{
		{"全图", image.Rect(0, 0, 300, 300), "TRIAL", 100},
		{"局部", image.Rect(40, 60, 260, 200), "PREVIEW ONLY", 35},
		{"越界 bounds", image.Rect(-50, -50, 500, 500), "W", 80},
		{"超过 100%", image.Rect(0, 0, 300, 300), "X", 250},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rect := image.Rect(0, 0, 300, 300)
			mask := image.NewGray(rect)
			for y := 0; y < 300; y++ {
				for x := 0; x < 300; x++ {
					// 左半边 mask < 10，右半边渐变
					if x >= 150 {
						mask.SetGray(x, y, color.Gray{Y: uint8(x - 50)})
					} else {
						mask.SetGray(x, y, color.Gray{Y: uint8(x % 10)})
					}
				}
			}

			layer, err := buildOverlay(rect, tc.bounds.Intersect(rect), tc.text, tc.opacity, DefaultStyle)
			require.NoError(t, err)
			clipOverlay(layer, mask, tc.bounds.Intersect(rect))

			for y := 0; y < 300; y++ {
				for x := 0; x < 300; x++ {
					a := layer.NRGBAAt(x, y).A
					if mask.GrayAt(x, y).Y < MaskFloor || !image.Pt(x, y).In(tc.bounds) {
						require.Zero(t, a, "(%d,%d)", x, y)
					}
				}
			}

			img := image.NewNRGBA(rect)
			for i := 0; i < len(img.Pix); i += 4 {
				copy(img.Pix[i:i+4], []uint8{90, 90, 90, 255})
			}
			require.NoError(t, ApplyMaskedOverlay(img, mask, tc.bounds, tc.text, tc.opacity))
			for y := 0; y < 300; y++ {
				for x := 0; x < 150; x++ {
					require.Equal(t, color.NRGBA{90, 90, 90, 255}, img.NRGBAAt(x, y))
				}
			}
		})
	}
}

func TestApplyMaskedOverlay_NoOp(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	mask := image.NewGray(img.Bounds())
	before := append([]uint8(nil), img.Pix...)

	require.NoError(t, ApplyMaskedOverlay(img, mask, img.Bounds(), "", 50))
	require.NoError(t, ApplyMaskedOverlay(img, mask, image.Rectangle{}, "X", 50))
	require.NoError(t, ApplyMaskedOverlay(img, mask, img.Bounds(), "X", 0))
	assert.Equal(t, before, img.Pix)
}
