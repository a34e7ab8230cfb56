package archive_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/sequin/internal/archive"
	"github.com/kode4food/sequin/pkg/api"
)

func TestBlobArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	a, err := archive.NewBlobArchive(ctx, "mem://", "results/")
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	res := (&api.FlowResult{
		InstanceID: "run-1",
		Category:   "orders",
		Name:       "ship",
		State:      api.FlowFailed,
		Data: map[api.Name]api.Value{
			"state": {Value: "boxed"},
		},
	}).WithError(errors.New("boom"))

	require.NoError(t, a.Put(ctx, res))

	got, err := a.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, api.FlowFailed, got.State)
	assert.Equal(t, "boom", got.ErrorText)
	assert.Nil(t, got.Error)
	assert.Equal(t, "boxed", got.Data["state"].Value)

	require.NoError(t, a.Delete(ctx, "run-1"))
	_, err = a.Get(ctx, "run-1")
	assert.ErrorIs(t, err, archive.ErrResultNotFound)
}

func TestBlobArchiveDeleteMissing(t *testing.T) {
	ctx := context.Background()
	a, err := archive.NewBlobArchive(ctx, "file://"+t.TempDir(), "")
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	assert.NoError(t, a.Delete(ctx, "missing"))
}

func TestBlobArchiveBadURL(t *testing.T) {
	_, err := archive.NewBlobArchive(context.Background(), "nope://x", "")
	assert.Error(t, err)
}
