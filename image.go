package sam

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/up-zero/gotool/imageutil"

	"github.com/pypae/KMP-SAM/segment"
)

// OpenImage 打开图片文件并转换为打包像素缓冲
func OpenImage(path string) (*segment.ImageBuffer, error) {
	img, err := imageutil.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开图片失败: %w", err)
	}
	return segment.FromImage(img), nil
}

// DecodeImage 从内存数据解码图片，支持 JPEG 和 PNG
func DecodeImage(data []byte) (*segment.ImageBuffer, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解码图片失败: %w", err)
	}
	return segment.FromImage(img), nil
}

// SaveImage 保存图片，质量参数仅对 JPEG 生效
func SaveImage(path string, img image.Image, quality int) error {
	if err := imageutil.Save(path, img, quality); err != nil {
		return fmt.Errorf("保存图片失败: %w", err)
	}
	return nil
}
