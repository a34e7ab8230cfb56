package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
	"gopkg.in/yaml.v3"

	"github.com/kode4food/sequin/pkg/api"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// Blob implements Provider over a gocloud.dev bucket, storing definitions
// as YAML documents. Any bucket URL gocloud can open is supported
type Blob struct {
	bucket *blob.Bucket
}

const (
	flowsPrefix   = "flows/"
	configsPrefix = "configs/"
	yamlExt       = ".yaml"
	blobSeparator = "/"
)

var _ Provider = (*Blob)(nil)

// NewBlob opens the bucket at the given URL
func NewBlob(ctx context.Context, bucketURL string) (*Blob, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return NewBlobWithBucket(bucket), nil
}

// NewBlobWithBucket wraps an already opened bucket
func NewBlobWithBucket(bucket *blob.Bucket) *Blob {
	return &Blob{bucket: bucket}
}

func (b *Blob) LoadFlowDefinition(
	ctx context.Context, category, name string,
) (*api.FlowDefinition, error) {
	var flow api.FlowDefinition
	err := b.read(ctx, flowKeyFor(category, name), &flow)
	if isNotFound(err) {
		return nil, flowNotFound(category, name)
	}
	if err != nil {
		return nil, err
	}
	return &flow, nil
}

func (b *Blob) LoadConfigDefinition(
	ctx context.Context, category, name, cfgName string,
) (*api.ConfigDefinition, error) {
	var cfg api.ConfigDefinition
	err := b.read(ctx, configKeyFor(category, name, cfgName), &cfg)
	if isNotFound(err) {
		return nil, configNotFound(category, name, cfgName)
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (b *Blob) SaveFlowDefinition(
	ctx context.Context, flow *api.FlowDefinition,
) error {
	if err := checkFlow(flow); err != nil {
		return err
	}
	return b.write(ctx, flowKeyFor(flow.Category, flow.Name), flow)
}

func (b *Blob) SaveConfigDefinition(
	ctx context.Context, cfg *api.ConfigDefinition,
) error {
	if err := checkConfig(cfg); err != nil {
		return err
	}
	key := configKeyFor(cfg.Category, cfg.Name, configName(cfg))
	return b.write(ctx, key, cfg)
}

func (b *Blob) Categories(ctx context.Context) ([]string, error) {
	var res []string
	err := b.list(ctx, flowsPrefix, func(obj *blob.ListObject) {
		if obj.IsDir {
			name := strings.TrimPrefix(obj.Key, flowsPrefix)
			res = append(res, strings.TrimSuffix(name, blobSeparator))
		}
	})
	slices.Sort(res)
	return res, err
}

func (b *Blob) Flows(ctx context.Context, category string) ([]string, error) {
	var res []string
	prefix := flowsPrefix + category + blobSeparator
	err := b.list(ctx, prefix, func(obj *blob.ListObject) {
		if !obj.IsDir && strings.HasSuffix(obj.Key, yamlExt) {
			name := strings.TrimPrefix(obj.Key, prefix)
			res = append(res, strings.TrimSuffix(name, yamlExt))
		}
	})
	slices.Sort(res)
	return res, err
}

func (b *Blob) Close() error {
	return b.bucket.Close()
}

func (b *Blob) read(ctx context.Context, key string, out any) error {
	data, err := b.bucket.ReadAll(ctx, key)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDefinitionInvalid, key, err)
	}
	return nil
}

func (b *Blob) write(ctx context.Context, key string, in any) error {
	data, err := yaml.Marshal(in)
	if err != nil {
		return err
	}
	return b.bucket.WriteAll(ctx, key, data, nil)
}

func (b *Blob) list(
	ctx context.Context, prefix string, fn func(*blob.ListObject),
) error {
	iter := b.bucket.List(&blob.ListOptions{
		Prefix:    prefix,
		Delimiter: blobSeparator,
	})
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fn(obj)
	}
}

func isNotFound(err error) bool {
	return err != nil && gcerrors.Code(err) == gcerrors.NotFound
}

func flowKeyFor(category, name string) string {
	return flowsPrefix + path.Join(category, name) + yamlExt
}

func configKeyFor(category, name, cfgName string) string {
	return configsPrefix + path.Join(category, name, cfgName) + yamlExt
}
