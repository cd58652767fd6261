package segment

import "errors"

// 错误类型，调用方通过 errors.Is 区分调用顺序错误和运行时故障
var (
	// ErrInvalidDimensions 图片或显示区域尺寸非法
	ErrInvalidDimensions = errors.New("图片尺寸非法")
	// ErrModelNotLoaded 模型尚未加载或引擎已关闭
	ErrModelNotLoaded = errors.New("模型未加载")
	// ErrNoImageEncoded 没有已编码的图片特征可用
	ErrNoImageEncoded = errors.New("没有已编码的图片")
	// ErrEmptyPrompt 解码至少需要一个提示点
	ErrEmptyPrompt = errors.New("提示点为空")
	// ErrMalformedOutput 模型输出与预期的形状不一致
	ErrMalformedOutput = errors.New("模型输出格式异常")
	// ErrBackendExecution 推理后端执行失败
	ErrBackendExecution = errors.New("推理后端执行失败")
)
