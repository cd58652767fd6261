package segment

// encoderCache 保存一次编码的全部产物，后续解码直接复用，不再触发编码
type encoderCache struct {
	outputs EncoderOutputs
	params  Params
	valid   bool
}

func (c *encoderCache) store(outputs EncoderOutputs, params Params) {
	c.outputs = outputs
	c.params = params
	c.valid = true
}

func (c *encoderCache) get() (EncoderOutputs, Params, error) {
	if !c.valid {
		return EncoderOutputs{}, Params{}, ErrNoImageEncoded
	}
	return c.outputs, c.params, nil
}

func (c *encoderCache) clear() {
	*c = encoderCache{}
}
