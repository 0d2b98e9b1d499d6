package generator

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"

	"github.com/d60-Lab/living-legends/internal/artifact"
)

const placeholderSize = 256

// Placeholder 图像服务不可用时生成的降级图：带暗角的灰度噪点
type Placeholder struct {
	store artifact.Store
}

func NewPlaceholder(store artifact.Store) *Placeholder { return &Placeholder{store: store} }

// RenderImage 只渲染主图
func (p *Placeholder) RenderImage(ctx context.Context, req ImageRequest) ([]ImageVariant, error) {
	data, err := NoisePNG(req.Seed, placeholderSize)
	if err != nil {
		return nil, err
	}
	ref, err := p.store.Save(ctx, "image", "png", data)
	if err != nil {
		return nil, err
	}
	prompt := ""
	if len(req.Variants) > 0 {
		prompt = req.Variants[0].Prompt
	}
	return []ImageVariant{{Name: VariantPrimary, Ref: ref, Prompt: prompt, Placeholder: true}}, nil
}

// NoisePNG 同一 seed 得到相同图像
func NoisePNG(seed int64, size int) ([]byte, error) {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, size, size))
	c := float64(size) / 2
	maxDist := math.Hypot(c, c)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			vignette := 1 - math.Hypot(float64(x)-c, float64(y)-c)/maxDist
			v := (20 + rng.Float64()*60) * vignette
			img.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}
