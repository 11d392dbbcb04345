package rembg

import (
	"context"
	"image"
)

type Remover interface {
	Remove(ctx context.Context, img image.Image) (image.Image, error)
}

// Factory 按颜色模式创建 Remover，Driver 和 HTTP 接口按任务/请求各取一个
type Factory func(keepOriginalColors bool) Remover

// DefaultFactory 固定阈值的去白底
func DefaultFactory(keepOriginalColors bool) Remover {
	return NewThresholdRemover(keepOriginalColors)
}

// ThresholdRemover 按固定阈值去除白底
type ThresholdRemover struct {
	KeepOriginalColors bool
}

func NewThresholdRemover(keepOriginalColors bool) *ThresholdRemover {
	return &ThresholdRemover{KeepOriginalColors: keepOriginalColors}
}

// Remove 接管 img 的所有权：*image.NRGBA 直接原地处理后返回，
// 其他类型先转成新的 NRGBA。逐行检查 ctx，取消时返回 ctx.Err()。
func (t *ThresholdRemover) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dst := ToNRGBA(img)
	h := dst.Bounds().Dy()
	for y := 0; y < h; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		removeRow(dst, y, t.KeepOriginalColors)
	}
	return dst, nil
}
