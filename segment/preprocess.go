package segment

// Preprocess 将原图转换为编码器输入张量数据。
// 流程: 等比最近邻缩放 -> 居中贴到正方形黑色画布 -> 归一化并转为通道优先布局。
// 返回的数据按 [3, targetSize, targetSize] 排列。
func Preprocess(img *ImageBuffer, targetSize int) ([]float32, Params, error) {
	if err := img.valid(); err != nil {
		return nil, Params{}, err
	}
	params, err := ComputeParams(img.Width, img.Height, targetSize)
	if err != nil {
		return nil, Params{}, err
	}
	scaled := resizeNearest(img, params.ScaledWidth, params.ScaledHeight, params.Scale)
	canvas := letterbox(scaled, params)
	return normalizeCHW(canvas), params, nil
}

// resizeNearest 最近邻缩放，源坐标取 dst/scale 向下取整后收在图片范围内
func resizeNearest(img *ImageBuffer, dstWidth, dstHeight int, scale float32) *ImageBuffer {
	pixels := make([]int32, dstWidth*dstHeight)
	for y := 0; y < dstHeight; y++ {
		srcY := clampInt(int(float32(y)/scale), 0, img.Height-1)
		for x := 0; x < dstWidth; x++ {
			srcX := clampInt(int(float32(x)/scale), 0, img.Width-1)
			pixels[y*dstWidth+x] = img.Pixels[srcY*img.Width+srcX]
		}
	}
	return &ImageBuffer{Width: dstWidth, Height: dstHeight, Pixels: pixels}
}

// letterbox 将缩放图贴到正方形画布中央，其余区域填充不透明黑色
func letterbox(scaled *ImageBuffer, p Params) *ImageBuffer {
	black := packARGB(0xFF, 0, 0, 0)
	pixels := make([]int32, p.TargetSize*p.TargetSize)
	for i := range pixels {
		pixels[i] = black
	}
	for y := 0; y < scaled.Height; y++ {
		dstRow := (y+p.PadTop)*p.TargetSize + p.PadLeft
		srcRow := y * scaled.Width
		copy(pixels[dstRow:dstRow+scaled.Width], scaled.Pixels[srcRow:srcRow+scaled.Width])
	}
	return &ImageBuffer{Width: p.TargetSize, Height: p.TargetSize, Pixels: pixels}
}

// normalizeCHW 按 ImageNet 均值方差归一化，黑边像素同样参与归一化
func normalizeCHW(canvas *ImageBuffer) []float32 {
	size := canvas.Width * canvas.Height
	out := make([]float32, 3*size)
	for i, px := range canvas.Pixels {
		_, r, g, b := unpackARGB(px)
		out[i] = (float32(r)/255.0 - MeanR) / StdR
		out[size+i] = (float32(g)/255.0 - MeanG) / StdG
		out[2*size+i] = (float32(b)/255.0 - MeanB) / StdB
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
