package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pypae/KMP-SAM/segment"
)

type stubModel struct {
	run func(inputs []segment.Tensor) (map[string]segment.Tensor, error)
}

func (m *stubModel) Run(inputs []segment.Tensor) (map[string]segment.Tensor, error) {
	return m.run(inputs)
}

func (m *stubModel) Close() error { return nil }

type stubBackend struct {
	models map[string]segment.Model
}

func (b *stubBackend) LoadModel(path string) (segment.Model, error) {
	m, ok := b.models[path]
	if !ok {
		return nil, fmt.Errorf("未知模型: %s", path)
	}
	return m, nil
}

// newStubEngine 模型输入边长 8，解码输出恒为全前景
func newStubEngine(t *testing.T) *segment.Engine {
	t.Helper()
	encoder := &stubModel{run: func([]segment.Tensor) (map[string]segment.Tensor, error) {
		return map[string]segment.Tensor{
			segment.TensorImageEmbeddings:  segment.NewFloatTensor(segment.TensorImageEmbeddings, []int64{1, 2}, []float32{1, 2}),
			segment.TensorHighResFeatures1: segment.NewFloatTensor(segment.TensorHighResFeatures1, []int64{1, 2}, []float32{3, 4}),
			segment.TensorHighResFeatures2: segment.NewFloatTensor(segment.TensorHighResFeatures2, []int64{1, 2}, []float32{5, 6}),
		}, nil
	}}
	decoder := &stubModel{run: func([]segment.Tensor) (map[string]segment.Tensor, error) {
		data := make([]float32, 64)
		for i := range data {
			data[i] = 1
		}
		return map[string]segment.Tensor{
			segment.TensorMasks:          segment.NewFloatTensor(segment.TensorMasks, []int64{1, 1, 8, 8}, data),
			segment.TensorIouPredictions: segment.NewFloatTensor(segment.TensorIouPredictions, []int64{1, 1}, []float32{0.9}),
		}, nil
	}}
	engine, err := segment.NewEngine(&stubBackend{models: map[string]segment.Model{
		"encoder.onnx": encoder,
		"decoder.onnx": decoder,
	}}, segment.Config{
		EncodeModelPath: "encoder.onnx",
		DecodeModelPath: "decoder.onnx",
		InputSize:       8,
	})
	require.NoError(t, err)
	return engine
}

func newTestServer(t *testing.T) (*gin.Engine, *sessionStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger = zap.NewNop()

	cfg := defaultConfig()
	store := newSessionStore(newStubEngine(t), cfg.Session.TTL)
	handler := NewSegmentHandler(cfg, store, nil)
	return newRouter(handler, store), store
}

func doRequest(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doRequest(r, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["session_id"])
	return resp["session_id"]
}

func uploadImage(t *testing.T, r *gin.Engine, id string) *httptest.ResponseRecorder {
	t.Helper()
	src := image.NewRGBA(image.Rect(0, 0, 4, 2))
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, src))

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("image", "test.png")
	require.NoError(t, err)
	_, err = fw.Write(pngBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/image", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return doRequest(r, req)
}

func postJSON(r *gin.Engine, url string, payload any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return doRequest(r, req)
}

func TestHealth(t *testing.T) {
	r, _ := newTestServer(t)
	w := doRequest(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSessionFlow(t *testing.T) {
	r, _ := newTestServer(t)
	id := createSession(t, r)

	w := uploadImage(t, r, id)
	require.Equal(t, http.StatusOK, w.Code)
	var dims map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dims))
	require.Equal(t, 4, dims["width"])
	require.Equal(t, 2, dims["height"])

	w = postJSON(r, "/api/v1/sessions/"+id+"/points", gin.H{"x": 1, "y": 1})
	require.Equal(t, http.StatusOK, w.Code)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	require.InDelta(t, 0.9, summary["score"], 1e-6)
	require.Equal(t, float64(4), summary["width"])
	require.Equal(t, float64(2), summary["height"])
	require.Equal(t, float64(8), summary["area"])

	// 返回体里内嵌 base64 编码的 mask PNG
	maskData, err := base64.StdEncoding.DecodeString(summary["mask"].(string))
	require.NoError(t, err)
	inline, err := png.Decode(bytes.NewReader(maskData))
	require.NoError(t, err)
	require.Equal(t, 4, inline.Bounds().Dx())
	require.Equal(t, 2, inline.Bounds().Dy())

	// mask PNG 与原图尺寸一致
	w = doRequest(r, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/mask", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))
	maskImg, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	require.Equal(t, 4, maskImg.Bounds().Dx())
	require.Equal(t, 2, maskImg.Bounds().Dy())

	w = doRequest(r, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/overlay", nil))
	require.Equal(t, http.StatusOK, w.Code)
	_, err = png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
}

func TestAddPointInViewSpace(t *testing.T) {
	r, _ := newTestServer(t)
	id := createSession(t, r)
	require.Equal(t, http.StatusOK, uploadImage(t, r, id).Code)

	w := postJSON(r, "/api/v1/sessions/"+id+"/points", gin.H{
		"x": 2, "y": 2, "view_width": 8, "view_height": 4,
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAddBox(t *testing.T) {
	r, _ := newTestServer(t)
	id := createSession(t, r)
	require.Equal(t, http.StatusOK, uploadImage(t, r, id).Code)

	w := postJSON(r, "/api/v1/sessions/"+id+"/box", gin.H{"x1": 0, "y1": 0, "x2": 3, "y2": 1})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/overlay", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestPointBeforeImage(t *testing.T) {
	r, _ := newTestServer(t)
	id := createSession(t, r)

	w := postJSON(r, "/api/v1/sessions/"+id+"/points", gin.H{"x": 1, "y": 1})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestClearPoints(t *testing.T) {
	r, _ := newTestServer(t)
	id := createSession(t, r)
	require.Equal(t, http.StatusOK, uploadImage(t, r, id).Code)
	require.Equal(t, http.StatusOK, postJSON(r, "/api/v1/sessions/"+id+"/points", gin.H{"x": 1, "y": 1}).Code)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+id+"/points", nil)
	require.Equal(t, http.StatusNoContent, doRequest(r, req).Code)

	// mask 已清空，但重新打点无需重新上传图片
	w := doRequest(r, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/mask", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, http.StatusOK, postJSON(r, "/api/v1/sessions/"+id+"/points", gin.H{"x": 2, "y": 0}).Code)
}

func TestClearImage(t *testing.T) {
	r, _ := newTestServer(t)
	id := createSession(t, r)
	require.Equal(t, http.StatusOK, uploadImage(t, r, id).Code)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+id+"/image", nil)
	require.Equal(t, http.StatusNoContent, doRequest(r, req).Code)

	w := postJSON(r, "/api/v1/sessions/"+id+"/points", gin.H{"x": 1, "y": 1})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteSession(t *testing.T) {
	r, store := newTestServer(t)
	id := createSession(t, r)
	require.Equal(t, 1, store.count())

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusNoContent, doRequest(r, req).Code)
	require.Equal(t, 0, store.count())

	require.Equal(t, http.StatusNotFound, uploadImage(t, r, id).Code)
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusNotFound, doRequest(r, req).Code)
}

func TestUnknownSession(t *testing.T) {
	r, _ := newTestServer(t)
	w := postJSON(r, "/api/v1/sessions/404/points", gin.H{"x": 1, "y": 1})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestBadRequestBody(t *testing.T) {
	r, _ := newTestServer(t)
	id := createSession(t, r)
	require.Equal(t, http.StatusOK, uploadImage(t, r, id).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/points", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusBadRequest, doRequest(r, req).Code)
}

func TestUploadRejectsNonImage(t *testing.T) {
	r, _ := newTestServer(t)
	id := createSession(t, r)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("image", "test.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("不是图片"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/image", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.Equal(t, http.StatusBadRequest, doRequest(r, req).Code)
}
