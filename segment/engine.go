package segment

import (
	"fmt"
	"runtime"
)

// Engine 持有编码器和解码器两个模型，负责创建 Session。
// 编码器重而解码器轻，同一张图片只编码一次，之后的提示都走解码器。
type Engine struct {
	encoder Model
	decoder Model

	inputSize     int
	maskThreshold float32
	closed        bool
}

// NewEngine 通过推理后端加载两个模型
func NewEngine(backend Backend, cfg Config) (*Engine, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: 推理后端为空", ErrModelNotLoaded)
	}
	inputSize := cfg.InputSize
	if inputSize <= 0 {
		inputSize = defaultInputSize
	}
	threshold := cfg.MaskThreshold
	if threshold <= 0 {
		threshold = defaultMaskThreshold
	}

	encoder, err := backend.LoadModel(cfg.EncodeModelPath)
	if err != nil {
		return nil, fmt.Errorf("加载 Encoder 模型失败: %w", err)
	}
	decoder, err := backend.LoadModel(cfg.DecodeModelPath)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("加载 Decoder 模型失败: %w", err)
	}

	e := &Engine{
		encoder:       encoder,
		decoder:       decoder,
		inputSize:     inputSize,
		maskThreshold: threshold,
	}
	// 设置 Finalizer 以防用户忘记 Close
	runtime.SetFinalizer(e, func(e *Engine) { e.Close() })
	return e, nil
}

// InputSize 模型输入的正方形边长
func (e *Engine) InputSize() int {
	return e.inputSize
}

// MaskThreshold 前景概率阈值
func (e *Engine) MaskThreshold() float32 {
	return e.maskThreshold
}

// Close 释放两个模型的资源，之后引擎不可再用
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	var firstErr error
	if e.encoder != nil {
		if err := e.encoder.Close(); err != nil {
			firstErr = fmt.Errorf("释放 Encoder 模型失败: %w", err)
		}
		e.encoder = nil
	}
	if e.decoder != nil {
		if err := e.decoder.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("释放 Decoder 模型失败: %w", err)
		}
		e.decoder = nil
	}
	return firstErr
}

func (e *Engine) ready() error {
	if e == nil || e.closed || e.encoder == nil || e.decoder == nil {
		return ErrModelNotLoaded
	}
	return nil
}

// encode 跑一次编码器，返回三个特征张量与坐标映射参数
func (e *Engine) encode(img *ImageBuffer) (EncoderOutputs, Params, error) {
	if err := e.ready(); err != nil {
		return EncoderOutputs{}, Params{}, err
	}
	data, params, err := Preprocess(img, e.inputSize)
	if err != nil {
		return EncoderOutputs{}, Params{}, err
	}

	size := int64(e.inputSize)
	input := NewFloatTensor(TensorPixelValues, []int64{1, 3, size, size}, data)

	// Encoder 推理
	outputs, err := e.encoder.Run([]Tensor{input})
	if err != nil {
		return EncoderOutputs{}, Params{}, fmt.Errorf("%w: encoder 推理失败: %w", ErrBackendExecution, err)
	}
	enc, err := collectEncoderOutputs(outputs)
	if err != nil {
		return EncoderOutputs{}, Params{}, err
	}
	return enc, params, nil
}

// collectEncoderOutputs 按名称取出编码器的三个输出，缺一不可
func collectEncoderOutputs(outputs map[string]Tensor) (EncoderOutputs, error) {
	var enc EncoderOutputs
	for _, item := range []struct {
		name string
		dst  *Tensor
	}{
		{TensorImageEmbeddings, &enc.ImageEmbeddings},
		{TensorHighResFeatures1, &enc.HighResFeatures1},
		{TensorHighResFeatures2, &enc.HighResFeatures2},
	} {
		t, ok := outputs[item.name]
		if !ok {
			return EncoderOutputs{}, fmt.Errorf("%w: 缺少编码输出 %s", ErrMalformedOutput, item.name)
		}
		if err := t.Validate(); err != nil {
			return EncoderOutputs{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		*item.dst = t
	}
	return enc, nil
}

// decode 用全部累计提示点跑一次解码器，返回原图空间的 mask
func (e *Engine) decode(enc EncoderOutputs, points []Point, params Params) (*Mask, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	inputs, err := assembleDecoderInputs(enc, points, params.TargetSize)
	if err != nil {
		return nil, err
	}

	// Decoder 推理
	outputs, err := e.decoder.Run(inputs)
	if err != nil {
		return nil, fmt.Errorf("%w: decoder 推理失败: %w", ErrBackendExecution, err)
	}
	masks, ok := outputs[TensorMasks]
	if !ok {
		return nil, fmt.Errorf("%w: 缺少解码输出 %s", ErrMalformedOutput, TensorMasks)
	}
	// 不同导出版本的得分输出名称不一样
	scores, ok := outputs[TensorIouPredictions]
	if !ok {
		if scores, ok = outputs[TensorScores]; !ok {
			return nil, fmt.Errorf("%w: 缺少解码输出 %s", ErrMalformedOutput, TensorIouPredictions)
		}
	}

	best, bestScore, err := selectBestMask(masks.Float32, scores.Float32, params.TargetSize*params.TargetSize)
	if err != nil {
		return nil, err
	}
	data, err := rescaleToOriginal(best, params)
	if err != nil {
		return nil, err
	}
	return &Mask{
		Width:  params.OriginalWidth,
		Height: params.OriginalHeight,
		Data:   data,
		Score:  bestScore,
	}, nil
}
