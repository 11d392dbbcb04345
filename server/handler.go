package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/chaos-io/logoprep/rembg"
	"github.com/chaos-io/logoprep/util"
	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
)

const requestIDHeader = "X-Request-Id"

// removeBackground
//
//	curl -X POST "$BASE_URL/api/v1/remove-background" \
//	  -F "image=@logo_icon.jpg" \
//	  -F "keep_colors=false" \
//	  -F "max_size=512" -o logo_icon_transparent.png
func (s *Server) removeBackground(c *gin.Context) {
	reqID := ksuid.New().String()
	c.Header(requestIDHeader, reqID)

	keep, err := parseBool(c.PostForm("keep_colors"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid keep_colors: " + err.Error()})
		return
	}
	maxSize, err := parseMaxSize(c.PostForm("max_size"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max_size: " + err.Error()})
		return
	}

	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image file"})
		return
	}
	if fh.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %d bytes", maxUploadSize)})
		return
	}
	data, err := readUpload(fh)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read upload: " + err.Error()})
		return
	}

	// 先看尺寸再解码，防止小文件声明超大尺寸
	decoded, format, err := util.DecodeBytes(fh.Filename, data)
	if err != nil {
		code := http.StatusUnprocessableEntity
		if errors.Is(err, util.ErrImageTooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}

	// 上传的图由本请求独占，交给 Remover 原地处理
	removed, err := s.newRemover(keep).Remove(c.Request.Context(), rembg.ResizeWithinMax(decoded, maxSize))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "remove background: " + err.Error()})
		return
	}
	img := rembg.ToNRGBA(removed)

	var buf bytes.Buffer
	if err := util.EncodePNG(&buf, img); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode png: " + err.Error()})
		return
	}

	s.logger.Debug("background removed",
		"request_id", reqID,
		"filename", fh.Filename,
		"format", format,
		"keep_colors", keep,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
	)
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()
	return io.ReadAll(io.LimitReader(file, maxUploadSize))
}

func (s *Server) runBatch(c *gin.Context) {
	report := s.RunBatch(c.Request.Context())
	c.JSON(http.StatusOK, report)
}

func parseBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func parseMaxSize(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("must not be negative")
	}
	return n, nil
}
