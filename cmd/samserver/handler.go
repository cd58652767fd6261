package main

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	sam "github.com/pypae/KMP-SAM"
	"github.com/pypae/KMP-SAM/segment"
)

// SegmentHandler 会话相关的 HTTP 处理器
type SegmentHandler struct {
	cfg    *Config
	store  *sessionStore
	drawer *sam.TextDrawer // 可选，没配置字体时为 nil
}

func NewSegmentHandler(cfg *Config, store *sessionStore, drawer *sam.TextDrawer) *SegmentHandler {
	return &SegmentHandler{cfg: cfg, store: store, drawer: drawer}
}

type pointRequest struct {
	X          float32 `json:"x"`
	Y          float32 `json:"y"`
	Foreground *bool   `json:"foreground"`
	// 传了显示区域尺寸时，坐标按显示坐标系处理
	ViewWidth  float32 `json:"view_width"`
	ViewHeight float32 `json:"view_height"`
}

type boxRequest struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

// errorStatus 引擎错误映射到 HTTP 状态码
func errorStatus(err error) int {
	switch {
	case errors.Is(err, segment.ErrInvalidDimensions),
		errors.Is(err, segment.ErrEmptyPrompt):
		return http.StatusBadRequest
	case errors.Is(err, segment.ErrNoImageEncoded):
		return http.StatusConflict
	case errors.Is(err, segment.ErrModelNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CreateSession 创建新会话
func (h *SegmentHandler) CreateSession(c *gin.Context) {
	id := h.store.create()
	logger.Info("session created", zap.String("session_id", id))
	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

// DeleteSession 删除会话
func (h *SegmentHandler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if !h.store.remove(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
		return
	}
	logger.Info("session removed", zap.String("session_id", id))
	c.Status(http.StatusNoContent)
}

// SetImage 上传并编码图片
func (h *SegmentHandler) SetImage(c *gin.Context) {
	id := c.Param("id")
	entry, ok := h.store.acquire(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
		return
	}
	defer entry.release()

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请上传图片文件"})
		return
	}
	if file.Size > h.cfg.Upload.MaxSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("文件大小超过限制 (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)),
		})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取上传文件失败"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取上传文件失败"})
		return
	}

	img, err := sam.DecodeImage(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "不支持的图片格式，仅支持 JPEG/PNG"})
		return
	}

	if err := entry.session.SetImage(img); err != nil {
		logger.Error("encode failed", zap.String("session_id", id), zap.Error(err))
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	entry.image = img

	w, hgt, _ := entry.session.OriginalSize()
	logger.Info("image encoded",
		zap.String("session_id", id),
		zap.Int("width", w),
		zap.Int("height", hgt))
	c.JSON(http.StatusOK, gin.H{"width": w, "height": hgt})
}

// AddPoint 添加提示点并返回最新的 mask 概要
func (h *SegmentHandler) AddPoint(c *gin.Context) {
	id := c.Param("id")
	entry, ok := h.store.acquire(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
		return
	}
	defer entry.release()

	var req pointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体格式非法"})
		return
	}
	foreground := req.Foreground == nil || *req.Foreground

	var mask *segment.Mask
	var err error
	if req.ViewWidth > 0 && req.ViewHeight > 0 {
		mask, err = entry.session.AddPointInView(req.X, req.Y, req.ViewWidth, req.ViewHeight, foreground)
	} else {
		mask, err = entry.session.AddPoint(req.X, req.Y, foreground)
	}
	if err != nil {
		logger.Error("decode failed", zap.String("session_id", id), zap.Error(err))
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	logger.Info("point added",
		zap.String("session_id", id),
		zap.Bool("foreground", foreground),
		zap.Float32("score", mask.Score))
	c.JSON(http.StatusOK, h.maskSummary(mask))
}

// AddBox 添加框选提示并返回最新的 mask 概要
func (h *SegmentHandler) AddBox(c *gin.Context) {
	id := c.Param("id")
	entry, ok := h.store.acquire(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
		return
	}
	defer entry.release()

	var req boxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体格式非法"})
		return
	}

	mask, err := entry.session.AddBox(req.X1, req.Y1, req.X2, req.Y2)
	if err != nil {
		logger.Error("decode failed", zap.String("session_id", id), zap.Error(err))
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	logger.Info("box added", zap.String("session_id", id), zap.Float32("score", mask.Score))
	c.JSON(http.StatusOK, h.maskSummary(mask))
}

// ClearPoints 清空提示点，特征缓存保留
func (h *SegmentHandler) ClearPoints(c *gin.Context) {
	entry, ok := h.store.acquire(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
		return
	}
	defer entry.release()

	entry.session.ClearPoints()
	c.Status(http.StatusNoContent)
}

// ClearImage 清空整个会话状态
func (h *SegmentHandler) ClearImage(c *gin.Context) {
	entry, ok := h.store.acquire(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
		return
	}
	defer entry.release()

	entry.session.ClearImage()
	entry.image = nil
	c.Status(http.StatusNoContent)
}

// GetMask 当前 mask 的二值 PNG
func (h *SegmentHandler) GetMask(c *gin.Context) {
	entry, ok := h.store.acquire(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
		return
	}
	defer entry.release()

	mask := entry.session.Mask()
	if mask == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "还没有生成 mask"})
		return
	}
	writePNG(c, mask.ToImage(h.store.engine.MaskThreshold()))
}

// GetOverlay 原图、mask 和提示点叠加后的 PNG
func (h *SegmentHandler) GetOverlay(c *gin.Context) {
	entry, ok := h.store.acquire(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
		return
	}
	defer entry.release()

	mask := entry.session.Mask()
	if mask == nil || entry.image == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "还没有生成 mask"})
		return
	}

	threshold := h.store.engine.MaskThreshold()
	overlay, err := sam.OverlayMask(entry.image.ToImage(), mask, threshold, color.RGBA{R: 255, A: 100})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.drawPrompts(overlay, entry.session)
	if h.drawer != nil {
		h.drawer.DrawText(overlay, fmt.Sprintf("score: %.4f", mask.Score), 8, 20, color.White)
	}
	writePNG(c, overlay)
}

// drawPrompts 把模型空间的提示点换算回原图空间后画出来
func (h *SegmentHandler) drawPrompts(img *image.RGBA, sess *segment.Session) {
	params, ok := sess.Params()
	if !ok {
		return
	}
	var boxCorner *image.Point
	for _, pt := range sess.Points() {
		ox, oy := params.ToOriginalSpace(pt.X, pt.Y)
		x, y := int(ox), int(oy)
		switch pt.Label {
		case segment.LabelForeground:
			sam.DrawPoint(img, x, y, 4, color.RGBA{G: 200, A: 255})
		case segment.LabelBackground:
			sam.DrawPoint(img, x, y, 4, color.RGBA{R: 220, A: 255})
		case segment.LabelBoxTopLeft:
			boxCorner = &image.Point{X: x, Y: y}
		case segment.LabelBoxBotRight:
			if boxCorner != nil {
				sam.DrawBox(img, boxCorner.X, boxCorner.Y, x, y, color.RGBA{B: 255, A: 255})
				boxCorner = nil
			}
		}
	}
}

func (h *SegmentHandler) maskSummary(mask *segment.Mask) gin.H {
	threshold := h.store.engine.MaskThreshold()
	return gin.H{
		"score":  mask.Score,
		"width":  mask.Width,
		"height": mask.Height,
		"area":   mask.Area(threshold),
		"mask":   maskToBase64(mask, threshold),
	}
}

// maskToBase64 mask 的二值 PNG 按 base64 编码，方便前端直接内嵌
func maskToBase64(mask *segment.Mask, threshold float32) string {
	var buf bytes.Buffer
	if err := png.Encode(&buf, mask.ToImage(threshold)); err != nil {
		logger.Error("failed to encode mask", zap.Error(err))
		return ""
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func writePNG(c *gin.Context, img image.Image) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "编码 PNG 失败"})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
