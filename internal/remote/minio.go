package remote

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"jvanrhyn.dev/remotetree/internal/filemeta"
)

// MinioConfig holds the connection settings of an S3-compatible store.
type MinioConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Prefix scopes the store to keys below it.
	Prefix string
	// RootName is the single root segment of tree paths. Defaults to Bucket.
	RootName string

	// Client is an optional pre-configured client. When set, Endpoint and
	// the credentials are ignored.
	Client *minio.Client
}

// MinioStore serves an S3 bucket as a remote store. Directories are key
// prefixes ending in "/".
type MinioStore struct {
	client   *minio.Client
	bucket   string
	prefix   string
	rootName string
}

// NewMinioStore connects to the store described by cfg.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	client := cfg.Client
	if client == nil {
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("endpoint is required when client is not provided")
		}
		var err error
		client, err = minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create minio client: %w", err)
		}
	}
	root := cfg.RootName
	if root == "" {
		root = cfg.Bucket
	}
	return &MinioStore{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		rootName: root,
	}, nil
}

// RootPath is the tree path of the bucket (or prefix) root.
func (s *MinioStore) RootPath() string {
	return filemeta.CleanPath("/" + s.rootName)
}

// key maps a tree path to an object key, without a trailing slash. ok is
// false for paths outside the named root.
func (s *MinioStore) key(p string) (string, bool) {
	parts := filemeta.SplitPath(p)
	if len(parts) == 0 || parts[0] != s.rootName {
		return "", false
	}
	segs := parts[1:]
	if s.prefix != "" {
		segs = append([]string{s.prefix}, segs...)
	}
	return strings.Join(segs, "/"), true
}

// treePath maps an object key back to a tree path.
func (s *MinioStore) treePath(key string) string {
	key = strings.TrimSuffix(key, "/")
	if s.prefix != "" {
		key = strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/")
	}
	return filemeta.JoinPath("/"+s.rootName, key)
}

func (s *MinioStore) List(ctx context.Context, dir string) ([]filemeta.Record, error) {
	dir = filemeta.CleanPath(dir)
	key, ok := s.key(dir)
	if !ok {
		return nil, NotFound(dir, nil)
	}
	listPrefix := ""
	if key != "" {
		listPrefix = key + "/"
	}
	out := []filemeta.Record{filemeta.ControlEntry(dir)}
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    listPrefix,
		Recursive: false,
	}) {
		if obj.Err != nil {
			return nil, s.classify("list", dir, obj.Err)
		}
		if obj.Key == listPrefix {
			// directory marker object
			continue
		}
		out = append(out, s.objectRecord(obj))
	}
	if len(out) == 1 && key != "" {
		// S3 has no empty directories without a marker object.
		if _, err := s.client.StatObject(ctx, s.bucket, listPrefix, minio.StatObjectOptions{}); err != nil {
			return nil, s.classify("list", dir, err)
		}
	}
	return out, nil
}

func (s *MinioStore) objectRecord(obj minio.ObjectInfo) filemeta.Record {
	if strings.HasSuffix(obj.Key, "/") {
		return filemeta.NewRecord(s.treePath(obj.Key), filemeta.Directory, 0, obj.LastModified)
	}
	return filemeta.NewRecord(s.treePath(obj.Key), filemeta.File, obj.Size, obj.LastModified)
}

func (s *MinioStore) Download(ctx context.Context, file string) ([]byte, error) {
	file = filemeta.CleanPath(file)
	key, ok := s.key(file)
	if !ok || key == "" {
		return nil, NotFound(file, nil)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.classify("download", file, err)
	}
	defer func() {
		_ = obj.Close()
	}()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.classify("download", file, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

// Remove deletes a single object, or every object below a directory prefix.
func (s *MinioStore) Remove(ctx context.Context, p string) error {
	p = filemeta.CleanPath(p)
	key, ok := s.key(p)
	if !ok || key == "" {
		return NotFound(p, nil)
	}
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err == nil {
		if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return s.classify("remove", p, err)
		}
		return nil
	}
	objects := make(chan minio.ObjectInfo)
	go func() {
		defer close(objects)
		for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
			Prefix:    key + "/",
			Recursive: true,
		}) {
			if obj.Err != nil {
				return
			}
			select {
			case objects <- obj:
			case <-ctx.Done():
				return
			}
		}
	}()
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil {
			return s.classify("remove", p, rerr.Err)
		}
	}
	return nil
}

func (s *MinioStore) classify(op, p string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return NotFound(p, err)
	}
	return Unavailable(op, p, err)
}
