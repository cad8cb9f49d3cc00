// Package matte 实现抠图的逐像素与形态学步骤：近白阈值抠图、推理结果归一化、
// 二值掩码清理、边缘收紧、羽化上采样以及 alpha 合成与去白边。
//
// 两个模型家族共享同一套流程，差异全部收在 Profile 里。
package matte

import (
	"image"
	"math"
)

// Normalization 模型输入的逐通道归一化方式
type Normalization int

const (
	// NormSymmetric 把 [0,1] 映射到 [-1,1]
	NormSymmetric Normalization = iota
	// NormMeanStd 使用 ImageNet 的 mean/std
	NormMeanStd
)

func (n Normalization) String() string {
	switch n {
	case NormSymmetric:
		return "symmetric"
	case NormMeanStd:
		return "mean_std"
	default:
		return "unknown"
	}
}

// 最小可用的模型输入边长，小于它时退回到家族默认值
const minInputSize = 64

// Profile 描述一个模型家族的后处理参数
type Profile struct {
	Name             string
	DefaultInputSize int
	Normalization    Normalization

	// 对比度曲线 smoothstep(ContrastLo, ContrastHi, v)
	ContrastLo float64
	ContrastHi float64

	// 羽化半径 = clamp(feather/FeatherDivisor, 0, FeatherCap)
	FeatherDivisor float64
	FeatherCap     float64

	Dehalo          bool
	ErodeIterations int
}

// 两个家族的常量来源不明，保持各自的取值，不要合并
var (
	U2Net = Profile{
		Name:             "u2net",
		DefaultInputSize: 320,
		Normalization:    NormMeanStd,
		ContrastLo:       0.20,
		ContrastHi:       0.90,
		FeatherDivisor:   8,
		FeatherCap:       6,
		Dehalo:           false,
		ErodeIterations:  1,
	}

	ISNet = Profile{
		Name:             "isnet",
		DefaultInputSize: 1024,
		Normalization:    NormSymmetric,
		ContrastLo:       0.18,
		ContrastHi:       0.90,
		FeatherDivisor:   10,
		FeatherCap:       8,
		Dehalo:           true,
		ErodeIterations:  1,
	}
)

// ProfileByName 按名称查找家族配置
func ProfileByName(name string) (Profile, bool) {
	switch name {
	case U2Net.Name:
		return U2Net, true
	case ISNet.Name:
		return ISNet, true
	}
	return Profile{}, false
}

// InputSize 根据模型元数据给出的尺寸决定推理分辨率，
// 未知或小于 64 的维度使用家族默认的正方形尺寸
func (p Profile) InputSize(declared image.Point) image.Point {
	if declared.X < minInputSize || declared.Y < minInputSize {
		return image.Pt(p.DefaultInputSize, p.DefaultInputSize)
	}
	return declared
}

// FeatherRadius 羽化量换算成高斯模糊半径
func (p Profile) FeatherRadius(feather float64) float64 {
	if feather <= 0 || p.FeatherDivisor <= 0 {
		return 0
	}
	return math.Min(math.Max(feather/p.FeatherDivisor, 0), p.FeatherCap)
}
