package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"
)

// Remote stores one opaque snapshot blob together with its timestamp.
type Remote interface {
	// Head returns the timestamp of the stored snapshot; ok is false if
	// there is none.
	Head(ctx context.Context) (ts time.Time, ok bool, err error)
	// Get downloads the stored snapshot, or returns ErrNoSnapshot.
	Get(ctx context.Context) (blob []byte, ts time.Time, err error)
	// Put replaces the stored snapshot.
	Put(ctx context.Context, blob []byte, ts time.Time) error
}

const (
	blobName = "snapshot.bin"
	tsName   = "snapshot.ts"
)

func formatTS(ts time.Time) string {
	return strconv.FormatInt(ts.UnixMilli(), 10)
}

func parseTS(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid snapshot timestamp %q: %w", s, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// FileRemote keeps the snapshot in a directory, for example one synced by a
// file-sharing service.
type FileRemote struct {
	dir string
}

// NewFileRemote returns a remote rooted at dir.
func NewFileRemote(dir string) *FileRemote {
	return &FileRemote{dir: dir}
}

func (f *FileRemote) Head(ctx context.Context) (time.Time, bool, error) {
	raw, err := os.ReadFile(filepath.Join(f.dir, tsName))
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ts, err := parseTS(string(raw))
	return ts, err == nil, err
}

func (f *FileRemote) Get(ctx context.Context) ([]byte, time.Time, error) {
	ts, ok, err := f.Head(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	if !ok {
		return nil, time.Time{}, ErrNoSnapshot
	}
	blob, err := os.ReadFile(filepath.Join(f.dir, blobName))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return blob, ts, nil
}

// Put writes the blob before the timestamp, each through a rename, so a
// reader never sees a timestamp without its blob.
func (f *FileRemote) Put(ctx context.Context, blob []byte, ts time.Time) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(f.dir, blobName), blob); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(f.dir, tsName), []byte(formatTS(ts)))
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// RedisRemote keeps the snapshot under two keys, <prefix>:blob and <prefix>:ts.
type RedisRemote struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisRemote returns a remote using rdb. The prefix usually includes the
// user's identity.
func NewRedisRemote(rdb redis.UniversalClient, prefix string) *RedisRemote {
	return &RedisRemote{rdb: rdb, prefix: prefix}
}

// DialRedis connects to addr and checks the connection.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (r *RedisRemote) blobKey() string { return r.prefix + ":blob" }
func (r *RedisRemote) tsKey() string   { return r.prefix + ":ts" }

func (r *RedisRemote) Head(ctx context.Context) (time.Time, bool, error) {
	raw, err := r.rdb.Get(ctx, r.tsKey()).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ts, err := parseTS(raw)
	return ts, err == nil, err
}

func (r *RedisRemote) Get(ctx context.Context) ([]byte, time.Time, error) {
	vals, err := r.rdb.MGet(ctx, r.tsKey(), r.blobKey()).Result()
	if err != nil {
		return nil, time.Time{}, err
	}
	rawTS, ok1 := vals[0].(string)
	blob, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return nil, time.Time{}, ErrNoSnapshot
	}
	ts, err := parseTS(rawTS)
	if err != nil {
		return nil, time.Time{}, err
	}
	return []byte(blob), ts, nil
}

func (r *RedisRemote) Put(ctx context.Context, blob []byte, ts time.Time) error {
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.blobKey(), blob, 0)
		p.Set(ctx, r.tsKey(), formatTS(ts), 0)
		return nil
	})
	return err
}

const tsMetadataKey = "lexicard-ts"

// GCSRemote keeps the snapshot as one Cloud Storage object with the
// timestamp in its metadata.
type GCSRemote struct {
	client *gcs.Client
	object *gcs.ObjectHandle
}

// NewGCSRemote opens bucket/object. opts are passed to the storage client,
// for example option.WithCredentialsFile.
func NewGCSRemote(ctx context.Context, bucket, object string, opts ...option.ClientOption) (*GCSRemote, error) {
	opts = append(opts, option.WithScopes(gcs.ScopeReadWrite))
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSRemote{client: client, object: client.Bucket(bucket).Object(object)}, nil
}

// Close releases the storage client.
func (g *GCSRemote) Close() error {
	return g.client.Close()
}

func (g *GCSRemote) attrs(ctx context.Context) (*gcs.ObjectAttrs, time.Time, bool, error) {
	attrs, err := g.object.Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}
	ts, err := parseTS(attrs.Metadata[tsMetadataKey])
	if err != nil {
		return nil, time.Time{}, false, err
	}
	return attrs, ts, true, nil
}

func (g *GCSRemote) Head(ctx context.Context) (time.Time, bool, error) {
	_, ts, ok, err := g.attrs(ctx)
	return ts, ok, err
}

func (g *GCSRemote) Get(ctx context.Context) ([]byte, time.Time, error) {
	attrs, ts, ok, err := g.attrs(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	if !ok {
		return nil, time.Time{}, ErrNoSnapshot
	}
	// Pin the generation so the blob matches the timestamp just read.
	rc, err := g.object.Generation(attrs.Generation).NewReader(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer rc.Close()
	blob, err := io.ReadAll(rc)
	if err != nil {
		return nil, time.Time{}, err
	}
	return blob, ts, nil
}

func (g *GCSRemote) Put(ctx context.Context, blob []byte, ts time.Time) error {
	w := g.object.NewWriter(ctx)
	w.ContentType = "application/zstd"
	w.Metadata = map[string]string{tsMetadataKey: formatTS(ts)}
	if _, err := w.Write(blob); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
