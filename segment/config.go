package segment

// Label 提示点类型
type Label int

const (
	LabelBackground  Label = 0 // 背景/排除
	LabelForeground  Label = 1 // 前景/点击
	LabelBoxTopLeft  Label = 2 // 框选左上
	LabelBoxBotRight Label = 3 // 框选右下
)

// 均值和方差常量 (ImageNet)
const (
	MeanR = 0.485
	MeanG = 0.456
	MeanB = 0.406

	StdR = 0.229
	StdG = 0.224
	StdB = 0.225
)

const (
	// defaultInputSize 模型输入的正方形边长
	defaultInputSize = 1024
	// defaultMaskThreshold 前景概率阈值
	defaultMaskThreshold = 0.5
)

// 模型的输入输出张量名称
const (
	TensorPixelValues      = "pixel_values"
	TensorImageEmbeddings  = "image_embeddings"
	TensorHighResFeatures1 = "high_res_features1"
	TensorHighResFeatures2 = "high_res_features2"
	TensorPointCoords      = "point_coords"
	TensorPointLabels      = "point_labels"
	TensorMaskInput        = "mask_input"
	TensorHasMaskInput     = "has_mask_input"
	TensorOrigImSize       = "orig_im_size"
	TensorMasks            = "masks"
	TensorIouPredictions   = "iou_predictions"
	TensorScores           = "scores"
)

// Point 模型坐标系下的提示点。
// 坐标在提示点创建时就换算到模型空间，之后不再变化。
type Point struct {
	X, Y  float32
	Label Label
}

// Config 引擎的初始化参数
type Config struct {
	// 必填参数
	OnnxRuntimeLibPath string // onnxruntime.dll (或 .so, .dylib) 的路径
	EncodeModelPath    string // 图片特征提取模型
	DecodeModelPath    string // 提示解码模型

	// 模型参数
	InputSize     int     // 模型输入尺寸 (默认 1024)
	MaskThreshold float32 // Mask 二值化阈值 (默认 0.5)

	// 可选参数
	UseCuda           bool // (可选) 是否启用 CUDA
	NumThreads        int  // (可选) ONNX 线程数, 默认由CPU核心数决定
	EnableCpuMemArena bool // (可选) 是否开启 ONNX 内存池
}
