package matte

import "image"

const (
	binaryThreshold = 30
	// 四角均值超过它时认为模型输出极性相反。只是经验近似，
	// 主体同时碰到四个角时会误判，阈值保持不变。
	invertCornerMean = 128
)

// Refine 原地清理模型分辨率的 matte：二值化、极性校正、只保留最大连通域、
// 填洞、腐蚀，最后把二值结果套回字节 matte。
func Refine(m *image.Gray, erodeIterations int) {
	w, h := m.Bounds().Dx(), m.Bounds().Dy()
	if w == 0 || h == 0 {
		return
	}

	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		row := y * m.Stride
		for x := 0; x < w; x++ {
			mask[y*w+x] = m.Pix[row+x] > binaryThreshold
		}
	}

	if cornerMean(m) > invertCornerMean {
		for y := 0; y < h; y++ {
			row := y * m.Stride
			for x := 0; x < w; x++ {
				mask[y*w+x] = !mask[y*w+x]
				m.Pix[row+x] = 255 - m.Pix[row+x]
			}
		}
	}

	keepLargestComponent(mask, w, h)
	fillHoles(mask, w, h)
	for range erodeIterations {
		mask = erode(mask, w, h)
	}

	for y := 0; y < h; y++ {
		row := y * m.Stride
		for x := 0; x < w; x++ {
			if !mask[y*w+x] {
				m.Pix[row+x] = 0
			}
		}
	}
}

func cornerMean(m *image.Gray) int {
	b := m.Bounds()
	sum := int(m.GrayAt(b.Min.X, b.Min.Y).Y) +
		int(m.GrayAt(b.Max.X-1, b.Min.Y).Y) +
		int(m.GrayAt(b.Min.X, b.Max.Y-1).Y) +
		int(m.GrayAt(b.Max.X-1, b.Max.Y-1).Y)
	return sum / 4
}

var dirs4 = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// keepLargestComponent 4 邻域 BFS 标记前景连通域，只保留像素最多的一个
func keepLargestComponent(mask []bool, w, h int) {
	visited := make([]bool, w*h)
	var best []int
	queue := make([]int, 0, 64)

	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}

		var comp []int
		queue = append(queue[:0], start)
		visited[start] = true
		for head := 0; head < len(queue); head++ {
			ci := queue[head]
			comp = append(comp, ci)
			cx, cy := ci%w, ci/w
			for _, d := range dirs4 {
				nx, ny := cx+d[0], cy+d[1]
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				ni := ny*w + nx
				if mask[ni] && !visited[ni] {
					visited[ni] = true
					queue = append(queue, ni)
				}
			}
		}

		if len(comp) > len(best) {
			best = comp
		}
	}

	clear(mask)
	for _, i := range best {
		mask[i] = true
	}
}

// fillHoles 从边框出发泛洪背景，没被触达的背景就是被包围的洞
func fillHoles(mask []bool, w, h int) {
	reached := make([]bool, w*h)
	queue := make([]int, 0, 2*(w+h))

	seed := func(i int) {
		if !mask[i] && !reached[i] {
			reached[i] = true
			queue = append(queue, i)
		}
	}
	for x := 0; x < w; x++ {
		seed(x)
		seed((h-1)*w + x)
	}
	for y := 0; y < h; y++ {
		seed(y * w)
		seed(y*w + w - 1)
	}

	for head := 0; head < len(queue); head++ {
		ci := queue[head]
		cx, cy := ci%w, ci/w
		for _, d := range dirs4 {
			nx, ny := cx+d[0], cy+d[1]
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			seed(ny*w + nx)
		}
	}

	for i := range mask {
		if !mask[i] && !reached[i] {
			mask[i] = true
		}
	}
}

// erode 3x3 腐蚀，只计算内部像素；最外一圈不参与计算，结果为背景
func erode(mask []bool, w, h int) []bool {
	out := make([]bool, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			out[y*w+x] = allSet3x3(mask, w, x, y)
		}
	}
	return out
}

func allSet3x3(mask []bool, w, x, y int) bool {
	for dy := -1; dy <= 1; dy++ {
		row := (y + dy) * w
		for dx := -1; dx <= 1; dx++ {
			if !mask[row+x+dx] {
				return false
			}
		}
	}
	return true
}
