package generator

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/living-legends/internal/artifact"
)

func TestNoisePNG_Deterministic(t *testing.T) {
	a, err := NoisePNG(42, 32)
	require.NoError(t, err)
	b, err := NoisePNG(42, 32)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	img, err := png.Decode(bytes.NewReader(a))
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
}

func TestPlaceholder_RenderImage(t *testing.T) {
	store, err := artifact.NewFileStore(t.TempDir(), "/g")
	require.NoError(t, err)
	p := NewPlaceholder(store)
	out, err := p.RenderImage(context.Background(), ImageRequest{Seed: 1, Variants: BuildVariants("a dim apartment interior", "t", nil)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Placeholder)
	assert.Equal(t, VariantPrimary, out[0].Name)
}

func TestBuildVariants(t *testing.T) {
	assert.Len(t, BuildVariants("scene", "t", nil), 2)
	vs := BuildVariants("scene", "t", []string{"room 13", "不要回头"})
	require.Len(t, vs, 3)
	assert.Equal(t, []string{VariantPrimary, VariantCloseUp, VariantWide}, []string{vs[0].Name, vs[1].Name, vs[2].Name})
	assert.Contains(t, vs[1].Prompt, "room 13")
}
