package segment

import "fmt"

// Tensor 带名称和形状的张量数据，Float32 与 Int64 二选一
type Tensor struct {
	Name    string
	Shape   []int64
	Float32 []float32
	Int64   []int64
}

// NewFloatTensor 创建 float32 张量
func NewFloatTensor(name string, shape []int64, data []float32) Tensor {
	return Tensor{Name: name, Shape: shape, Float32: data}
}

// NewIntTensor 创建 int64 张量
func NewIntTensor(name string, shape []int64, data []int64) Tensor {
	return Tensor{Name: name, Shape: shape, Int64: data}
}

// NumElements 形状对应的元素总数
func (t Tensor) NumElements() int64 {
	n := int64(1)
	for _, dim := range t.Shape {
		n *= dim
	}
	return n
}

// Validate 校验数据长度与形状是否一致
func (t Tensor) Validate() error {
	n := t.NumElements()
	switch {
	case t.Float32 != nil && t.Int64 != nil:
		return fmt.Errorf("张量 %s 不能同时携带两种数据", t.Name)
	case t.Float32 != nil:
		if int64(len(t.Float32)) != n {
			return fmt.Errorf("张量 %s 数据长度 %d 与形状元素数 %d 不一致", t.Name, len(t.Float32), n)
		}
	case t.Int64 != nil:
		if int64(len(t.Int64)) != n {
			return fmt.Errorf("张量 %s 数据长度 %d 与形状元素数 %d 不一致", t.Name, len(t.Int64), n)
		}
	default:
		return fmt.Errorf("张量 %s 没有数据", t.Name)
	}
	return nil
}

// Model 已加载的推理模型句柄
type Model interface {
	// Run 执行一次推理，输入输出均按张量名称对应
	Run(inputs []Tensor) (map[string]Tensor, error)
	// Close 释放模型资源
	Close() error
}

// Backend 推理后端，负责加载模型文件
type Backend interface {
	LoadModel(path string) (Model, error)
}

// EncoderOutputs encoder 的三个输出张量，必须作为整体存在
type EncoderOutputs struct {
	ImageEmbeddings  Tensor
	HighResFeatures1 Tensor
	HighResFeatures2 Tensor
}
