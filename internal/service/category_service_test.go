package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/living-legends/internal/repository"
)

func TestCategoryService_TrackAndTop(t *testing.T) {
	e := newEnv(t, nil)
	svc := NewCategoryService(repository.NewCategoryClickRepository(e.db))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n, err := svc.Track(ctx, "user-a", "subway_ghost")
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	_, err := svc.Track(ctx, "user-a", " mirror ")
	require.NoError(t, err)
	_, err = svc.Track(ctx, "user-a", "urban_legend")
	require.NoError(t, err)
	_, err = svc.Track(ctx, "user-a", "urban_legend")
	require.NoError(t, err)

	top, err := svc.Top(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "subway_ghost", top[0].Category)
	assert.Equal(t, "urban_legend", top[1].Category)

	top, err = svc.Top(ctx, "user-b")
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestCategoryService_InvalidCategory(t *testing.T) {
	e := newEnv(t, nil)
	svc := NewCategoryService(repository.NewCategoryClickRepository(e.db))

	for _, cat := range []string{"", "   ", strings.Repeat("鬼", maxCategoryLength+1)} {
		_, err := svc.Track(context.Background(), "user-a", cat)
		assert.ErrorIs(t, err, ErrInvalidCategory)
	}
}
