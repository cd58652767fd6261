package segment

import (
	"fmt"
	"math"
)

// Params 原图空间与模型空间之间的仿射映射参数。
// 图片按等比缩放后在正方形画布上居中，两侧用黑边填充。
type Params struct {
	// Scale 等比缩放系数，min(target/w, target/h)
	Scale float32
	// ScaledWidth 缩放后的图片宽度
	ScaledWidth int
	// ScaledHeight 缩放后的图片高度
	ScaledHeight int
	// PadLeft 画布左侧黑边宽度
	PadLeft int
	// PadTop 画布顶部黑边高度
	PadTop int
	// OriginalWidth 原图宽度
	OriginalWidth int
	// OriginalHeight 原图高度
	OriginalHeight int
	// TargetSize 模型空间边长
	TargetSize int
}

// ComputeParams 根据原图尺寸与模型边长计算映射参数
func ComputeParams(originalWidth, originalHeight, targetSize int) (Params, error) {
	if originalWidth <= 0 || originalHeight <= 0 {
		return Params{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, originalWidth, originalHeight)
	}
	if targetSize <= 0 {
		return Params{}, fmt.Errorf("%w: 目标边长 %d", ErrInvalidDimensions, targetSize)
	}
	scale := float32(math.Min(
		float64(targetSize)/float64(originalWidth),
		float64(targetSize)/float64(originalHeight),
	))
	scaledW := int(math.Round(float64(originalWidth) * float64(scale)))
	scaledH := int(math.Round(float64(originalHeight) * float64(scale)))
	return Params{
		Scale:          scale,
		ScaledWidth:    scaledW,
		ScaledHeight:   scaledH,
		PadLeft:        (targetSize - scaledW) / 2,
		PadTop:         (targetSize - scaledH) / 2,
		OriginalWidth:  originalWidth,
		OriginalHeight: originalHeight,
		TargetSize:     targetSize,
	}, nil
}

// ToModelSpace 原图坐标转模型空间坐标
func (p Params) ToModelSpace(x, y float32) (mx, my float32) {
	return x*p.Scale + float32(p.PadLeft), y*p.Scale + float32(p.PadTop)
}

// ToOriginalSpace 模型空间坐标转回原图坐标
func (p Params) ToOriginalSpace(mx, my float32) (x, y float32) {
	return (mx - float32(p.PadLeft)) / p.Scale, (my - float32(p.PadTop)) / p.Scale
}

// viewToOriginal 显示坐标转原图坐标，显示区域与原图按各自宽高线性对应
func viewToOriginal(vx, vy, viewWidth, viewHeight float32, originalWidth, originalHeight int) (x, y float32, err error) {
	if viewWidth <= 0 || viewHeight <= 0 {
		return 0, 0, fmt.Errorf("%w: 显示区域 %.0fx%.0f", ErrInvalidDimensions, viewWidth, viewHeight)
	}
	return vx * float32(originalWidth) / viewWidth, vy * float32(originalHeight) / viewHeight, nil
}
