package segment

import (
	"fmt"
	"image"
	"image/color"
)

// ImageBuffer 打包像素缓冲，每个像素一个 int32，按 ARGB 位压缩，行优先排列。
// 捕获后不再修改，由调用方持有，预处理阶段只读。
type ImageBuffer struct {
	Width  int
	Height int
	Pixels []int32
}

// NewImageBuffer 通过已有像素数组创建缓冲
func NewImageBuffer(pixels []int32, width, height int) (*ImageBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if len(pixels) != width*height {
		return nil, fmt.Errorf("%w: 像素数量 %d 与尺寸 %dx%d 不一致", ErrInvalidDimensions, len(pixels), width, height)
	}
	return &ImageBuffer{Width: width, Height: height, Pixels: pixels}, nil
}

// FromImage 将任意图片转换为打包像素缓冲
func FromImage(img image.Image) *ImageBuffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([]int32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// RGBA 返回 16 位值，压缩为 8 位
			pixels[y*w+x] = packARGB(uint8(a>>8), uint8(r>>8), uint8(g>>8), uint8(b>>8))
		}
	}
	return &ImageBuffer{Width: w, Height: h, Pixels: pixels}
}

// ToImage 转换回标准图片
func (b *ImageBuffer) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			a, r, g, bl := unpackARGB(b.Pixels[y*b.Width+x])
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: bl, A: a})
		}
	}
	return img
}

// valid 校验缓冲自身的一致性
func (b *ImageBuffer) valid() error {
	if b == nil || b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: 空图片", ErrInvalidDimensions)
	}
	if len(b.Pixels) != b.Width*b.Height {
		return fmt.Errorf("%w: 像素数量 %d 与尺寸 %dx%d 不一致", ErrInvalidDimensions, len(b.Pixels), b.Width, b.Height)
	}
	return nil
}

func packARGB(a, r, g, b uint8) int32 {
	return int32(uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

func unpackARGB(p int32) (a, r, g, b uint8) {
	u := uint32(p)
	return uint8(u >> 24), uint8(u >> 16), uint8(u >> 8), uint8(u)
}
