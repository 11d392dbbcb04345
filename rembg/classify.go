package rembg

import (
	"image"
	"image/color"
)

const (
	// BackgroundThreshold 三个通道都大于该值时视为近白背景
	BackgroundThreshold = 220
	// DarkThreshold 三个通道都小于该值时视为近黑前景
	DarkThreshold = 80
)

// Class 单个像素的分类结果，只在处理过程中临时使用，不会保存
type Class int

const (
	Unchanged Class = iota
	Background
	DarkForeground
)

func (c Class) String() string {
	switch c {
	case Background:
		return "background"
	case DarkForeground:
		return "dark-foreground"
	default:
		return "unchanged"
	}
}

// Classify 按优先级判断像素类别，先匹配的规则生效
//
//  1. r,g,b > 220        -> Background（去掉）
//  2. !keep && r,g,b < 80 -> DarkForeground（反白）
//  3. 其他               -> Unchanged
//
// 蓝色等强调色走第 3 条，不需要单独处理。
func Classify(c color.NRGBA, keepOriginalColors bool) Class {
	if c.R > BackgroundThreshold && c.G > BackgroundThreshold && c.B > BackgroundThreshold {
		return Background
	}
	if !keepOriginalColors && c.R < DarkThreshold && c.G < DarkThreshold && c.B < DarkThreshold {
		return DarkForeground
	}
	return Unchanged
}

// TransformPixel 对单个像素应用分类规则
// Background 只改 alpha，DarkForeground 只改 RGB
func TransformPixel(c color.NRGBA, keepOriginalColors bool) color.NRGBA {
	switch Classify(c, keepOriginalColors) {
	case Background:
		c.A = 0
	case DarkForeground:
		c.R, c.G, c.B = 255, 255, 255
	}
	return c
}

// RemoveBackground 去除近白背景，可选把深色像素反白
// img 的所有权交给本函数：直接修改 Pix 后原样返回，尺寸不变。
// 只应对同一张图执行一次，反白后的像素在第二次处理时会被当作背景。
func RemoveBackground(img *image.NRGBA, keepOriginalColors bool) *image.NRGBA {
	h := img.Bounds().Dy()
	for y := 0; y < h; y++ {
		removeRow(img, y, keepOriginalColors)
	}
	return img
}

// removeRow 处理第 y 行（相对 img.Rect.Min）
func removeRow(img *image.NRGBA, y int, keepOriginalColors bool) {
	w := img.Bounds().Dx()
	row := y * img.Stride
	for x := 0; x < w; x++ {
		i := row + x*4
		px := TransformPixel(color.NRGBA{
			R: img.Pix[i],
			G: img.Pix[i+1],
			B: img.Pix[i+2],
			A: img.Pix[i+3],
		}, keepOriginalColors)
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = px.R, px.G, px.B, px.A
	}
}
