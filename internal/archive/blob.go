// Package archive stores the results of finished flow instances
package archive

import (
	"context"
	"encoding/json"
	"errors"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/kode4food/sequin/pkg/api"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// BlobArchive stores flow results as JSON documents using gocloud.dev/blob,
// supporting any bucket URL gocloud can open
type BlobArchive struct {
	bucket *blob.Bucket
	prefix string
}

var ErrResultNotFound = errors.New("archived result not found")

// NewBlobArchive opens the bucket at the given URL
func NewBlobArchive(
	ctx context.Context, bucketURL, prefix string,
) (*BlobArchive, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return &BlobArchive{bucket: bucket, prefix: prefix}, nil
}

func (a *BlobArchive) Get(
	ctx context.Context, id api.InstanceID,
) (*api.FlowResult, error) {
	data, err := a.bucket.ReadAll(ctx, a.keyFor(id))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrResultNotFound
		}
		return nil, err
	}

	var res api.FlowResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *BlobArchive) Put(ctx context.Context, res *api.FlowResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return a.bucket.WriteAll(ctx, a.keyFor(res.InstanceID), data, nil)
}

func (a *BlobArchive) Delete(ctx context.Context, id api.InstanceID) error {
	err := a.bucket.Delete(ctx, a.keyFor(id))
	if err != nil && gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

func (a *BlobArchive) Close() error {
	return a.bucket.Close()
}

func (a *BlobArchive) keyFor(id api.InstanceID) string {
	return a.prefix + string(id) + ".json"
}
