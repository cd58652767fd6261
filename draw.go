package sam

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	"github.com/up-zero/gotool/imageutil"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/pypae/KMP-SAM/segment"
)

// OverlayMask 把 mask 前景区域按指定颜色叠加到原图上，c.A 控制混合强度
func OverlayMask(src image.Image, mask *segment.Mask, threshold float32, c color.RGBA) (*image.RGBA, error) {
	bounds := src.Bounds()
	if bounds.Dx() != mask.Width || bounds.Dy() != mask.Height {
		return nil, fmt.Errorf("mask 尺寸 %dx%d 与图片尺寸 %dx%d 不一致",
			mask.Width, mask.Height, bounds.Dx(), bounds.Dy())
	}
	out := image.NewRGBA(image.Rect(0, 0, mask.Width, mask.Height))
	draw.Draw(out, out.Bounds(), src, bounds.Min, draw.Src)

	alpha := uint32(c.A)
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if mask.At(x, y) < threshold {
				continue
			}
			i := out.PixOffset(x, y)
			out.Pix[i+0] = uint8((uint32(c.R)*alpha + uint32(out.Pix[i+0])*(255-alpha)) / 255)
			out.Pix[i+1] = uint8((uint32(c.G)*alpha + uint32(out.Pix[i+1])*(255-alpha)) / 255)
			out.Pix[i+2] = uint8((uint32(c.B)*alpha + uint32(out.Pix[i+2])*(255-alpha)) / 255)
		}
	}
	return out, nil
}

// DrawPoint 画实心圆点标记提示点
func DrawPoint(img *image.RGBA, x, y, radius int, c color.RGBA) {
	imageutil.DrawFilledCircle(img, image.Point{X: x, Y: y}, radius, c)
}

// DrawBox 画矩形框标记框选提示，角点顺序任意
func DrawBox(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	imageutil.DrawThickRectOutline(img, image.Rect(x1, y1, x2, y2), c, 3)
}

// TextDrawer 文本绘制工具
type TextDrawer struct {
	font     *opentype.Font
	face     font.Face
	fontSize float64
}

// NewTextDrawer 创建文本绘制工具
//
// # Params:
//
//	fontPath: 字体路径
func NewTextDrawer(fontPath string) (*TextDrawer, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("打开字体文件失败：%w", err)
	}

	ttFont, err := opentype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("解析字体文件失败：%w", err)
	}

	d := &TextDrawer{font: ttFont}
	if err := d.SetSize(12); err != nil {
		return nil, err
	}
	return d, nil
}

// SetSize 动态调整字体大小
//
// # Params:
//
//	fontSize: 字体大小
func (d *TextDrawer) SetSize(fontSize float64) error {
	if d.face != nil && d.fontSize == fontSize {
		return nil
	}

	// 释放旧 Face 内存
	if d.face != nil {
		d.face.Close()
	}

	nf, err := opentype.NewFace(d.font, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return err
	}

	d.face = nf
	d.fontSize = fontSize
	return nil
}

// DrawText 绘制文本
//
// # Params:
//
//	img: 被绘制的图像
//	text: 绘制的文本
//	x, y: 绘制的坐标
//	c: 绘制的颜色
func (d *TextDrawer) DrawText(img draw.Image, text string, x, y int, c color.Color) {
	point := fixed.Point26_6{
		X: fixed.I(x),
		Y: fixed.I(y),
	}

	d1 := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c), // 文字颜色源
		Face: d.face,
		Dot:  point, // 开始绘制的点
	}
	d1.DrawString(text)
}

// Close 释放资源
func (d *TextDrawer) Close() {
	if d.face != nil {
		d.face.Close()
	}
}
