// Package frames 生成首页视频的占位帧（在正式动画完成前使用）
package frames

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"
)

type Config struct {
	Count   int    // 帧数，120 帧 = 30fps 下 4 秒
	Width   int    // 像素
	Height  int    // 像素
	Dir     string // 输出目录
	Quality int    // JPEG 质量 1-100
}

func DefaultConfig() Config {
	return Config{
		Count:   120,
		Width:   1920,
		Height:  1080,
		Dir:     "frames",
		Quality: 80,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Count <= 0:
		return fmt.Errorf("frames: count must be positive, got %d", c.Count)
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("frames: invalid size %dx%d", c.Width, c.Height)
	case c.Quality < 1 || c.Quality > 100:
		return fmt.Errorf("frames: quality must be in [1,100], got %d", c.Quality)
	case c.Dir == "":
		return errors.New("frames: output dir is empty")
	}
	return nil
}

var (
	baseColor  = gg.Hex("#020C1B")
	suitColor  = gg.Hex("#00E676")
	glassColor = gg.Hex("#00F0FF")
)

// Renderer 持有字体，可以连续渲染多帧
type Renderer struct {
	cfg    Config
	source *text.FontSource
	face   text.Face
}

func NewRenderer(cfg Config) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	source, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	return &Renderer{cfg: cfg, source: source, face: source.Face(48)}, nil
}

func (r *Renderer) Close() error {
	return r.source.Close()
}

// Render 绘制第 i 帧（从 1 开始）
func (r *Renderer) Render(i int) (image.Image, error) {
	dc, err := r.draw(i)
	if err != nil {
		return nil, err
	}
	_ = dc.Close()
	return dc.Image(), nil
}

func (r *Renderer) draw(i int) (*gg.Context, error) {
	if i < 1 || i > r.cfg.Count {
		return nil, fmt.Errorf("frames: frame %d out of range [1,%d]", i, r.cfg.Count)
	}

	w, h := float64(r.cfg.Width), float64(r.cfg.Height)
	progress := float64(i) / float64(r.cfg.Count)

	dc := gg.NewContext(r.cfg.Width, r.cfg.Height)
	dc.ClearWithColor(baseColor)

	// 背景光晕，每个循环脉动两次
	glow := math.Abs(math.Sin(progress * math.Pi * 4))
	gradient := gg.NewRadialGradientBrush(w/2, h/2, 100, w/2).
		AddColorStop(0, withAlpha(glassColor, 0.1+glow*0.1)).
		AddColorStop(1, withAlpha(glassColor, 0))
	dc.SetFillBrush(gradient)
	dc.DrawRectangle(0, 0, w, h)
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("fill glow: %w", err)
	}

	// 人物从左下走到右上，带上下起伏
	manX := 300 + progress*(w-600)
	manY := 800 - progress*400
	bob := math.Sin(progress*math.Pi*12) * 20

	dc.SetFillBrush(gg.Solid(suitColor))
	dc.DrawRoundedRectangle(manX-50, manY-150+bob, 100, 300, 20)
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("fill figure: %w", err)
	}

	// 玻璃台阶
	dc.SetLineWidth(10)
	stepOffset := math.Mod(progress*10, 1) * 100
	for j := 0; j < 5; j++ {
		baseX := manX - 300 + float64(j)*150 - stepOffset
		baseY := manY + 150 - float64(j)*100 + stepOffset

		dc.MoveTo(baseX, baseY)
		dc.LineTo(baseX+250, baseY)
		dc.LineTo(baseX+300, baseY+30)
		dc.LineTo(baseX+50, baseY+30)
		dc.ClosePath()

		dc.SetFillBrush(gg.Solid(withAlpha(glassColor, 0.1+float64(j)*0.05)))
		if err := dc.FillPreserve(); err != nil {
			return nil, fmt.Errorf("fill step %d: %w", j, err)
		}
		dc.SetStrokeBrush(gg.Solid(glassColor))
		if err := dc.Stroke(); err != nil {
			return nil, fmt.Errorf("stroke step %d: %w", j, err)
		}
	}

	dc.SetFont(r.face)
	dc.SetRGB(1, 1, 1)
	dc.DrawString(fmt.Sprintf("Frame %d/%d", i, r.cfg.Count), 50, 100)

	return dc, nil
}

func withAlpha(c gg.RGBA, a float64) gg.RGBA {
	c.A = a
	return c
}

// FrameName 第 i 帧的文件名，例如 frame_007.jpg
func FrameName(i int) string {
	return fmt.Sprintf("frame_%03d.jpg", i)
}

// Generate 渲染全部帧写入 cfg.Dir，每 10 帧在 progress 上输出一次进度
func Generate(ctx context.Context, cfg Config, progress io.Writer) error {
	r, err := NewRenderer(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.Close()
	}()

	if err := os.MkdirAll(cfg.Dir, os.ModePerm); err != nil {
		return fmt.Errorf("create frames dir: %w", err)
	}

	_, _ = fmt.Fprintf(progress, "Generating %d placeholder frames...\n", cfg.Count)
	for i := 1; i <= cfg.Count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.writeFrame(i, filepath.Join(cfg.Dir, FrameName(i))); err != nil {
			return err
		}
		if i%10 == 0 {
			_, _ = fmt.Fprintf(progress, "...%d", i)
		}
	}
	_, _ = fmt.Fprintf(progress, "\n\nDone! Generated %d frames in %s\n", cfg.Count, cfg.Dir)
	return nil
}

func (r *Renderer) writeFrame(i int, path string) (err error) {
	dc, err := r.draw(i)
	if err != nil {
		return err
	}
	defer func() {
		_ = dc.Close()
	}()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create frame %d: %w", i, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close frame %d: %w", i, cerr)
		}
	}()

	if err := dc.EncodeJPEG(f, r.cfg.Quality); err != nil {
		return fmt.Errorf("encode frame %d: %w", i, err)
	}
	return nil
}
