package estimator

import (
	"fmt"
	"image"

	"github.com/chaos-io/cutout/matte"
)

var (
	imageNetMean = [3]float32{0.485, 0.456, 0.406}
	imageNetStd  = [3]float32{0.229, 0.224, 0.225}

	symmetricMean = [3]float32{0.5, 0.5, 0.5}
	symmetricStd  = [3]float32{0.5, 0.5, 0.5}
)

// ToCHW 把图像按通道归一化成 1×3×H×W 的输入数据
func ToCHW(img image.Image, width, height int, norm matte.Normalization) ([]float32, error) {
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return nil, fmt.Errorf("input is %dx%d, model wants %dx%d", b.Dx(), b.Dy(), width, height)
	}

	mean, std := imageNetMean, imageNetStd
	if norm == matte.NormSymmetric {
		mean, std = symmetricMean, symmetricStd
	}

	plane := width * height
	data := make([]float32, 3*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			idx := y*width + x
			data[idx] = (float32(r>>8)/255.0 - mean[0]) / std[0]
			data[plane+idx] = (float32(g>>8)/255.0 - mean[1]) / std[1]
			data[2*plane+idx] = (float32(bl>>8)/255.0 - mean[2]) / std[2]
		}
	}
	return data, nil
}
