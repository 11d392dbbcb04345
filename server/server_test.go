package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chaos-io/logoprep/batch"
	"github.com/chaos-io/logoprep/rembg"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func pngBytes(t *testing.T, w, h int, fill func(x, y int) color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func whiteAndDark(x, _ int) color.NRGBA {
	if x == 0 {
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return color.NRGBA{R: 10, G: 10, B: 10, A: 255}
}

func uploadRequest(t *testing.T, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if data != nil {
		part, err := writer.CreateFormFile("image", "logo.png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/remove-background", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// pngHeader 只有签名和 IHDR 的 PNG，声明任意尺寸但不带像素数据
func pngHeader(width, height uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8] = 8
	ihdr[9] = 6

	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A})
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func decodePNG(t *testing.T, data []byte) *image.NRGBA {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	nrgba, ok := img.(*image.NRGBA)
	require.True(t, ok, "got %T", img)
	return nrgba
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig(), WithLogger(discard))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRemoveBackground(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		fields map[string]string
		want   [2]color.NRGBA
	}{
		{
			name:   "默认反白",
			fields: nil,
			want:   [2]color.NRGBA{{255, 255, 255, 0}, {255, 255, 255, 255}},
		},
		{
			name:   "保留颜色",
			fields: map[string]string{"keep_colors": "true"},
			want:   [2]color.NRGBA{{255, 255, 255, 0}, {10, 10, 10, 255}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := New(DefaultConfig(), WithLogger(discard))
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, uploadRequest(t, pngBytes(t, 2, 1, whiteAndDark), tt.fields))

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
			_, err := ksuid.Parse(w.Header().Get(requestIDHeader))
			assert.NoError(t, err)

			got := decodePNG(t, w.Body.Bytes())
			assert.Equal(t, image.Rect(0, 0, 2, 1), got.Bounds())
			assert.Equal(t, tt.want[0], got.NRGBAAt(0, 0))
			assert.Equal(t, tt.want[1], got.NRGBAAt(1, 0))
		})
	}
}

func TestRemoveBackground_MaxSize(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig(), WithLogger(discard))
	data := pngBytes(t, 200, 100, func(x, y int) color.NRGBA {
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, uploadRequest(t, data, map[string]string{"max_size": "50"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 25, img.Bounds().Dy())
}

func TestRemoveBackground_BadRequests(t *testing.T) {
	t.Parallel()

	valid := pngBytes(t, 2, 1, whiteAndDark)

	tests := []struct {
		name     string
		data     []byte
		fields   map[string]string
		wantCode int
		wantErr  string
	}{
		{name: "缺少文件", data: nil, wantCode: http.StatusBadRequest, wantErr: "missing image file"},
		{name: "keep_colors 非法", data: valid, fields: map[string]string{"keep_colors": "maybe"}, wantCode: http.StatusBadRequest, wantErr: "invalid keep_colors"},
		{name: "max_size 非数字", data: valid, fields: map[string]string{"max_size": "big"}, wantCode: http.StatusBadRequest, wantErr: "invalid max_size"},
		{name: "max_size 为负", data: valid, fields: map[string]string{"max_size": "-1"}, wantCode: http.StatusBadRequest, wantErr: "invalid max_size"},
		{name: "无法解码", data: []byte("not an image"), wantCode: http.StatusUnprocessableEntity, wantErr: "decode logo.png"},
		{name: "声明尺寸过大", data: pngHeader(64000, 64000), wantCode: http.StatusRequestEntityTooLarge, wantErr: "image too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := New(DefaultConfig(), WithLogger(discard))
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, uploadRequest(t, tt.data, tt.fields))

			assert.Equal(t, tt.wantCode, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Contains(t, body["error"], tt.wantErr)
		})
	}
}

type fakeRemover struct {
	mu    *sync.Mutex
	calls *[]bool
	keep  bool
	err   error
}

func (f fakeRemover) Remove(_ context.Context, img image.Image) (image.Image, error) {
	f.mu.Lock()
	*f.calls = append(*f.calls, f.keep)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return img, nil
}

func TestRemoveBackground_UsesRemover(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls []bool
	)
	factory := func(keep bool) rembg.Remover {
		return fakeRemover{mu: &mu, calls: &calls, keep: keep}
	}
	s := New(DefaultConfig(), WithLogger(discard), WithRemover(factory))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, uploadRequest(t, pngBytes(t, 2, 1, whiteAndDark), map[string]string{"keep_colors": "true"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 替身原样返回，白色像素应保持不透明
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, color.NRGBAModel.Convert(img.At(0, 0)))
	assert.Equal(t, []bool{true}, calls)
}

func TestRemoveBackground_RemoverError(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls []bool
	)
	factory := func(keep bool) rembg.Remover {
		return fakeRemover{mu: &mu, calls: &calls, keep: keep, err: errors.New("model unavailable")}
	}
	s := New(DefaultConfig(), WithLogger(discard), WithRemover(factory))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, uploadRequest(t, pngBytes(t, 2, 1, whiteAndDark), nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "model unavailable")
	assert.Equal(t, []bool{false}, calls)
}

func TestRunBatch_UsesRemover(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, ksuid.New().String()+".png")
	require.NoError(t, os.WriteFile(input, pngBytes(t, 2, 1, whiteAndDark), 0o644))

	var (
		mu    sync.Mutex
		calls []bool
	)
	factory := func(keep bool) rembg.Remover {
		return fakeRemover{mu: &mu, calls: &calls, keep: keep}
	}
	s := New(DefaultConfig(),
		WithLogger(discard),
		WithRemover(factory),
		WithJobs([]batch.Job{{Input: input, Output: filepath.Join(dir, "out.png"), KeepOriginalColors: true}}),
	)

	report := s.RunBatch(context.Background())
	require.Len(t, report.Results, 1)
	assert.Equal(t, batch.Succeeded, report.Results[0].Status)
	assert.Equal(t, []bool{true}, calls)
}

func TestRunBatchEndpoint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "logo_icon.png")
	require.NoError(t, os.WriteFile(in, pngBytes(t, 2, 1, whiteAndDark), 0o644))

	jobs := []batch.Job{
		{Input: in, Output: filepath.Join(dir, "logo_icon_transparent.png")},
		{Input: filepath.Join(dir, "logo_text.jpg"), Output: filepath.Join(dir, "logo_text_transparent.png"), KeepOriginalColors: true},
	}
	s := New(DefaultConfig(), WithLogger(discard), WithJobs(jobs))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/batch", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var report struct {
		RunID   string
		Results []struct {
			Status string
			Reason string
			Width  int
			Height int
		}
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "OK", report.Results[0].Status)
	assert.Equal(t, 2, report.Results[0].Width)
	assert.Equal(t, "SKIPPED", report.Results[1].Status)
	assert.Contains(t, report.Results[1].Reason, "not found")

	_, err := os.Stat(jobs[0].Output)
	assert.NoError(t, err)
}

func TestStart_InvalidSchedule(t *testing.T) {
	t.Parallel()

	s := New(Config{Schedule: "not a cron spec"}, WithLogger(discard))
	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "add cron schedule")
	s.Stop()
}

func TestStart_Schedule(t *testing.T) {
	t.Parallel()

	s := New(Config{Schedule: "@every 1h"}, WithLogger(discard), WithJobs(nil))
	require.NoError(t, s.Start())
	require.NotNil(t, s.cron)
	assert.Len(t, s.cron.Entries(), 1)

	s.Stop()
	assert.Nil(t, s.cron)
}

func TestRun_Shutdown(t *testing.T) {
	t.Parallel()

	s := New(Config{Addr: "127.0.0.1:0"}, WithLogger(discard))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
