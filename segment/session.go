package segment

// Session 单张图片的交互式分割会话。
// 状态流转: 空 -> 已编码 -> 已提示，ClearPoints 回到已编码，ClearImage 回到空。
// 会话内部不加锁，同一会话的调用方需要自行串行化。
type Session struct {
	engine *Engine
	cache  encoderCache
	points []Point
	mask   *Mask
}

// NewSession 创建空会话，可以在同一个引擎上创建多个互不影响的会话
func (e *Engine) NewSession() *Session {
	return &Session{engine: e}
}

// SetImage 编码一张新图片，替换之前缓存的特征并清空提示点。
// 编码失败时保留原有缓存和提示点，状态不变。
func (s *Session) SetImage(img *ImageBuffer) error {
	enc, params, err := s.engine.encode(img)
	if err != nil {
		return err
	}
	s.cache.store(enc, params)
	s.points = nil
	s.mask = nil
	return nil
}

// SetPixels 通过打包像素数组编码图片
func (s *Session) SetPixels(pixels []int32, width, height int) error {
	img, err := NewImageBuffer(pixels, width, height)
	if err != nil {
		return err
	}
	return s.SetImage(img)
}

// AddPoint 添加一个原图坐标系的提示点并重新解码。
// 每次添加都带着全部累计的点重跑解码器，不会再触发编码。
func (s *Session) AddPoint(x, y float32, foreground bool) (*Mask, error) {
	label := LabelBackground
	if foreground {
		label = LabelForeground
	}
	return s.addPrompts(Point{X: x, Y: y, Label: label})
}

// AddPointInView 添加一个显示坐标系的提示点，先换算到原图坐标
func (s *Session) AddPointInView(x, y, viewWidth, viewHeight float32, foreground bool) (*Mask, error) {
	_, params, err := s.cache.get()
	if err != nil {
		return nil, err
	}
	ox, oy, err := viewToOriginal(x, y, viewWidth, viewHeight, params.OriginalWidth, params.OriginalHeight)
	if err != nil {
		return nil, err
	}
	return s.AddPoint(ox, oy, foreground)
}

// AddBox 添加一个原图坐标系的框选提示，两个角点按左上/右下标签送入解码器
func (s *Session) AddBox(x1, y1, x2, y2 float32) (*Mask, error) {
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return s.addPrompts(
		Point{X: x1, Y: y1, Label: LabelBoxTopLeft},
		Point{X: x2, Y: y2, Label: LabelBoxBotRight},
	)
}

// addPrompts 把原图坐标的提示点换算到模型空间后加入会话并解码。
// 解码失败时回退本次加入的点，上一轮的 mask 保持不变。
func (s *Session) addPrompts(prompts ...Point) (*Mask, error) {
	enc, params, err := s.cache.get()
	if err != nil {
		return nil, err
	}
	for _, pt := range prompts {
		mx, my := params.ToModelSpace(pt.X, pt.Y)
		s.points = append(s.points, Point{X: mx, Y: my, Label: pt.Label})
	}
	mask, err := s.engine.decode(enc, s.points, params)
	if err != nil {
		s.points = s.points[:len(s.points)-len(prompts)]
		return nil, err
	}
	s.mask = mask
	return mask, nil
}

// ClearPoints 清空提示点和 mask，特征缓存保留，重新提示不需要再编码
func (s *Session) ClearPoints() {
	s.points = nil
	s.mask = nil
}

// ClearImage 清空整个会话，包括特征缓存
func (s *Session) ClearImage() {
	s.cache.clear()
	s.points = nil
	s.mask = nil
}

// HasImage 是否已有编码完成的图片
func (s *Session) HasImage() bool {
	return s.cache.valid
}

// OriginalSize 当前已编码图片的原始尺寸
func (s *Session) OriginalSize() (width, height int, ok bool) {
	if !s.cache.valid {
		return 0, 0, false
	}
	return s.cache.params.OriginalWidth, s.cache.params.OriginalHeight, true
}

// Params 当前已编码图片的坐标映射参数，调用方渲染提示点时需要
func (s *Session) Params() (Params, bool) {
	if !s.cache.valid {
		return Params{}, false
	}
	return s.cache.params, true
}

// Points 当前累计的提示点 (模型坐标系)
func (s *Session) Points() []Point {
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Mask 最近一次解码得到的 mask，没有时为 nil
func (s *Session) Mask() *Mask {
	return s.mask
}
