package segment

import (
	"fmt"
	"image"
)

// Mask 单张分割结果，Data 为前景概率，长度 Width*Height，行优先排列
type Mask struct {
	Width  int
	Height int
	Data   []float32
	// Score 模型对该 mask 的置信度估计
	Score float32
}

// At 返回 (x, y) 处的前景概率
func (m *Mask) At(x, y int) float32 {
	return m.Data[y*m.Width+x]
}

// Binary 按阈值二值化，true 表示前景
func (m *Mask) Binary(threshold float32) []bool {
	out := make([]bool, len(m.Data))
	for i, v := range m.Data {
		out[i] = v >= threshold
	}
	return out
}

// Area 统计前景像素数量
func (m *Mask) Area(threshold float32) int {
	count := 0
	for _, v := range m.Data {
		if v >= threshold {
			count++
		}
	}
	return count
}

// ToImage 按阈值二值化为灰度图，前景 255 背景 0
func (m *Mask) ToImage(threshold float32) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Data {
		if v >= threshold {
			img.Pix[i] = 255
		}
	}
	return img
}

// selectBestMask 从解码器的多候选输出中选出得分最高的 mask。
// rawMasks 为 numMasks 个连续块，每块 maskSize 个值。得分相同时取靠前的候选。
func selectBestMask(rawMasks, scores []float32, maskSize int) ([]float32, float32, error) {
	if maskSize <= 0 || len(rawMasks)%maskSize != 0 {
		return nil, 0, fmt.Errorf("%w: mask 数据长度 %d 不是块大小 %d 的整数倍", ErrMalformedOutput, len(rawMasks), maskSize)
	}
	numMasks := len(rawMasks) / maskSize
	if numMasks == 0 {
		return nil, 0, fmt.Errorf("%w: 没有候选 mask", ErrMalformedOutput)
	}
	if len(scores) != numMasks {
		return nil, 0, fmt.Errorf("%w: 得分数量 %d 与候选数量 %d 不一致", ErrMalformedOutput, len(scores), numMasks)
	}
	bestIdx := 0
	bestScore := scores[0]
	for i := 1; i < numMasks; i++ {
		if scores[i] > bestScore {
			bestScore = scores[i]
			bestIdx = i
		}
	}
	best := make([]float32, maskSize)
	copy(best, rawMasks[bestIdx*maskSize:(bestIdx+1)*maskSize])
	return best, bestScore, nil
}

// rescaleToOriginal 去掉黑边后把模型空间的 mask 还原到原图尺寸。
// 必须使用编码该图片时的同一组映射参数，否则裁剪区域对不齐。
func rescaleToOriginal(modelMask []float32, p Params) ([]float32, error) {
	if len(modelMask) != p.TargetSize*p.TargetSize {
		return nil, fmt.Errorf("%w: mask 长度 %d 与模型空间 %dx%d 不一致", ErrMalformedOutput, len(modelMask), p.TargetSize, p.TargetSize)
	}
	// 裁出缩放图所在的有效区域
	cropped := make([]float32, p.ScaledWidth*p.ScaledHeight)
	for y := 0; y < p.ScaledHeight; y++ {
		srcRow := (y+p.PadTop)*p.TargetSize + p.PadLeft
		copy(cropped[y*p.ScaledWidth:(y+1)*p.ScaledWidth], modelMask[srcRow:srcRow+p.ScaledWidth])
	}
	// 最近邻放缩回原图
	out := make([]float32, p.OriginalWidth*p.OriginalHeight)
	for y := 0; y < p.OriginalHeight; y++ {
		srcY := clampInt(y*p.ScaledHeight/p.OriginalHeight, 0, p.ScaledHeight-1)
		for x := 0; x < p.OriginalWidth; x++ {
			srcX := clampInt(x*p.ScaledWidth/p.OriginalWidth, 0, p.ScaledWidth-1)
			out[y*p.OriginalWidth+x] = cropped[srcY*p.ScaledWidth+srcX]
		}
	}
	return out, nil
}
