package util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/chaos-io/logoprep/rembg"
	nhttp "github.com/chaos-io/logoprep/util/http"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxPixels 解码前按文件头检查像素数，超过则拒绝，避免小文件解出超大缓冲
const MaxPixels = 40_000_000

var ErrImageTooLarge = errors.New("image too large")

var client nhttp.IClient = nhttp.NewHTTPClient()

func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// Decode 读取本地文件或 http(s) 图片，返回独占的 NRGBA 缓冲和格式名
//
//	路径不存在（或 404）      -> *NotFoundError
//	无法读取 / 格式不支持 / 损坏 -> *DecodeError
func Decode(ctx context.Context, src string) (*image.NRGBA, string, error) {
	var data []byte
	var err error
	if isRemote(src) {
		data, err = DownloadImage(ctx, src)
	} else {
		data, err = readLocal(src)
	}
	if err != nil {
		return nil, "", err
	}

	return DecodeBytes(src, data)
}

// DecodeBytes 解码内存中的图片，先用 DecodeConfig 读尺寸，
// 像素数超过 MaxPixels 时返回包含 ErrImageTooLarge 的 *DecodeError
func DecodeBytes(name string, data []byte) (*image.NRGBA, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", &DecodeError{Path: name, Err: withFormat(data, err)}
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, "", &DecodeError{
			Path: name,
			Err:  fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, MaxPixels),
		}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", &DecodeError{Path: name, Err: withFormat(data, err)}
	}

	// 统一转成新的 NRGBA，调用方可以放心原地修改
	return rembg.CloneNRGBA(img), format, nil
}

func withFormat(data []byte, err error) error {
	if sniffed := DetectFormat(data); sniffed != "" {
		return fmt.Errorf("%s: %w", sniffed, err)
	}
	return err
}

func readLocal(path string) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, &DecodeError{Path: path, Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return data, nil
}

// DownloadImage 下载图片原始字节
func DownloadImage(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := client.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: url,
		Method:     http.MethodGet,
		Response:   &data,
	})
	if err != nil {
		var statusErr *nhttp.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, &NotFoundError{Path: url}
		}
		return nil, &DecodeError{Path: url, Err: err}
	}
	return data, nil
}

// Encode 以 PNG（保留 alpha）写入 path，已存在的文件会被覆盖，不会创建父目录
func Encode(img image.Image, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &WriteError{Path: path, Err: cerr}
		}
	}()

	if err := EncodePNG(f, img); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(w, img)
}
