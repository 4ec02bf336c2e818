package media

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkdir(t *testing.T) {
	root := t.TempDir()
	dir, cleanup, err := Workdir(root)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(dir+"/frame.png", []byte("x"), 0o644))
	cleanup()

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	other, cleanup2, err := Workdir(root)
	require.NoError(t, err)
	defer cleanup2()
	assert.NotEqual(t, dir, other)
}

func TestStagePropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := Stage(context.Background(), "preview", "extract", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	called := false
	require.NoError(t, Stage(context.Background(), "preview", "upload", func(context.Context) error {
		called = true
		return nil
	}))
	assert.True(t, called)
}
