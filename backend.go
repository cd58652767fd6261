package sam

import (
	"fmt"

	"github.com/up-zero/gotool/convertutil"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/pypae/KMP-SAM/segment"
)

// OnnxBackend 基于 onnxruntime 的推理后端
type OnnxBackend struct {
	options *ort.SessionOptions
}

// NewOnnxBackend 初始化 ONNX 环境并创建后端
func NewOnnxBackend(cfg segment.Config) (*OnnxBackend, error) {
	onnxConfig := new(OnnxConfig)
	if err := convertutil.CopyProperties(cfg, onnxConfig); err != nil {
		return nil, fmt.Errorf("复制参数失败: %w", err)
	}
	// 初始化 ONNX
	if err := onnxConfig.New(); err != nil {
		return nil, err
	}
	return &OnnxBackend{options: onnxConfig.SessionOptions}, nil
}

// LoadModel 加载模型文件并建立会话，输入输出名称直接从模型里读取
func (b *OnnxBackend) LoadModel(path string) (segment.Model, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("读取模型输入输出信息失败: %w", err)
	}
	inputNames := make([]string, 0, len(inputs))
	for _, info := range inputs {
		inputNames = append(inputNames, info.Name)
	}
	outputNames := make([]string, 0, len(outputs))
	for _, info := range outputs {
		outputNames = append(outputNames, info.Name)
	}

	session, err := ort.NewDynamicAdvancedSession(path, inputNames, outputNames, b.options)
	if err != nil {
		return nil, fmt.Errorf("创建 ONNX 会话失败: %w", err)
	}
	return &onnxModel{
		session:     session,
		inputNames:  inputNames,
		outputNames: outputNames,
	}, nil
}

// onnxModel 一个已加载的 ONNX 模型会话
type onnxModel struct {
	session     *ort.DynamicAdvancedSession
	inputNames  []string
	outputNames []string
}

// Run 执行一次推理。输入按模型声明的名称排序，输出拷贝为普通张量后销毁原值
func (m *onnxModel) Run(inputs []segment.Tensor) (map[string]segment.Tensor, error) {
	if m.session == nil {
		return nil, fmt.Errorf("ONNX 会话已销毁")
	}
	byName := make(map[string]segment.Tensor, len(inputs))
	for _, in := range inputs {
		byName[in.Name] = in
	}

	ortInputs := make([]ort.Value, len(m.inputNames))
	defer func() {
		for _, v := range ortInputs {
			if v != nil {
				v.Destroy()
			}
		}
	}()
	for i, name := range m.inputNames {
		in, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("缺少输入张量: %s", name)
		}
		v, err := toOrtValue(in)
		if err != nil {
			return nil, err
		}
		ortInputs[i] = v
	}

	// 输出槽位留空，由 onnxruntime 自行分配
	ortOutputs := make([]ort.Value, len(m.outputNames))
	if err := m.session.Run(ortInputs, ortOutputs); err != nil {
		return nil, fmt.Errorf("onnx 推理失败: %w", err)
	}
	defer func() {
		for _, v := range ortOutputs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	result := make(map[string]segment.Tensor, len(m.outputNames))
	for i, name := range m.outputNames {
		t, err := fromOrtValue(name, ortOutputs[i])
		if err != nil {
			return nil, err
		}
		result[name] = t
	}
	return result, nil
}

// Close 释放会话资源
func (m *onnxModel) Close() error {
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	if err != nil {
		return fmt.Errorf("销毁 ONNX 会话失败: %w", err)
	}
	return nil
}

// toOrtValue 把张量数据搬进 onnxruntime
func toOrtValue(t segment.Tensor) (ort.Value, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	shape := ort.NewShape(t.Shape...)
	if t.Int64 != nil {
		v, err := ort.NewTensor(shape, t.Int64)
		if err != nil {
			return nil, fmt.Errorf("创建 %s Tensor 失败: %w", t.Name, err)
		}
		return v, nil
	}
	v, err := ort.NewTensor(shape, t.Float32)
	if err != nil {
		return nil, fmt.Errorf("创建 %s Tensor 失败: %w", t.Name, err)
	}
	return v, nil
}

// fromOrtValue 把 onnxruntime 的输出拷贝成普通张量
func fromOrtValue(name string, v ort.Value) (segment.Tensor, error) {
	switch tv := v.(type) {
	case *ort.Tensor[float32]:
		data := make([]float32, len(tv.GetData()))
		copy(data, tv.GetData())
		return segment.NewFloatTensor(name, tv.GetShape(), data), nil
	case *ort.Tensor[int64]:
		data := make([]int64, len(tv.GetData()))
		copy(data, tv.GetData())
		return segment.NewIntTensor(name, tv.GetShape(), data), nil
	default:
		return segment.Tensor{}, fmt.Errorf("输出 %s 的数据类型不支持", name)
	}
}

// NewEngine 初始化分割引擎，加载编码和解码两个模型
func NewEngine(cfg segment.Config) (*segment.Engine, error) {
	backend, err := NewOnnxBackend(cfg)
	if err != nil {
		return nil, err
	}
	return segment.NewEngine(backend, cfg)
}

// DefaultConfig 返回默认配置
func DefaultConfig() segment.Config {
	return segment.Config{
		OnnxRuntimeLibPath: DefaultLibraryPath(),
		EncodeModelPath:    "./sam_weights/image_encoder.onnx",
		DecodeModelPath:    "./sam_weights/prompt_decoder.onnx",
	}
}
