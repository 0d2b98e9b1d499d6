package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/living-legends/internal/generator"
)

type fakeTranslator struct {
	calls  int
	target string
}

func (f *fakeTranslator) Translate(_ context.Context, text, target string) (string, error) {
	f.calls++
	f.target = target
	return "[" + target + "] " + text, nil
}

func TestTranslateService(t *testing.T) {
	tr := &fakeTranslator{}
	svc := NewTranslateService(tr)
	ctx := context.Background()

	out, err := svc.Translate(ctx, "  ", "ja")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, tr.calls)

	out, err = svc.Translate(ctx, "门又响了", "")
	require.NoError(t, err)
	assert.Equal(t, "[en] 门又响了", out)
	assert.Equal(t, "en", tr.target)

	_, err = svc.Translate(ctx, strings.Repeat("门", maxTranslateLength+1), "en")
	assert.ErrorIs(t, err, ErrTextTooLong)
	assert.Equal(t, 1, tr.calls)
}

func TestTranslateService_Offline(t *testing.T) {
	_, err := NewTranslateService(nil).Translate(context.Background(), "门又响了", "en")
	assert.ErrorIs(t, err, generator.ErrUnavailable)
}
