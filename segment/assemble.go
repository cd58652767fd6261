package segment

// assembleDecoderInputs 组装解码器的全部输入张量，编码产物原样透传。
// 提示点在加入会话时已换算到模型空间，这里直接平铺。
// mask_input 固定为全零，has_mask_input 固定为 0，表示不携带上一轮的 mask。
// orig_im_size 固定为模型尺寸，解码输出保持在模型空间，由后处理负责还原到原图。
func assembleDecoderInputs(enc EncoderOutputs, points []Point, targetSize int) ([]Tensor, error) {
	if len(points) == 0 {
		return nil, ErrEmptyPrompt
	}
	n := len(points)
	coords := make([]float32, 0, n*2)
	labels := make([]float32, 0, n)
	for _, pt := range points {
		coords = append(coords, pt.X, pt.Y)
		labels = append(labels, float32(pt.Label))
	}
	maskSize := targetSize / 4
	target := int64(targetSize)
	return []Tensor{
		enc.ImageEmbeddings,
		enc.HighResFeatures1,
		enc.HighResFeatures2,
		NewFloatTensor(TensorPointCoords, []int64{1, int64(n), 2}, coords),
		NewFloatTensor(TensorPointLabels, []int64{1, int64(n)}, labels),
		NewFloatTensor(TensorMaskInput, []int64{1, 1, int64(maskSize), int64(maskSize)}, make([]float32, maskSize*maskSize)),
		NewFloatTensor(TensorHasMaskInput, []int64{1}, []float32{0}),
		NewIntTensor(TensorOrigImSize, []int64{2}, []int64{target, target}),
	}, nil
}
