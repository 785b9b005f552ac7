package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

const archivePrefix = "snapshots/"

// ObjectStore is the slice of the MinIO client the archive uses.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, body []byte) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	ListKeys(ctx context.Context, bucket, prefix string) ([]string, error)
}

// ArchiveOptions configures the MinIO connection.
type ArchiveOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Archive wraps a Store and copies every successful insert into an object
// store as brotli-compressed JSON. Archive failures are logged and never
// fail the insert.
type Archive struct {
	Store
	objects ObjectStore
	bucket  string
	timeout time.Duration
}

func NewArchive(inner Store, objects ObjectStore, bucket string) *Archive {
	return &Archive{Store: inner, objects: objects, bucket: bucket, timeout: 10 * time.Second}
}

// NewMinIOArchive connects to MinIO, creating the bucket when missing.
func NewMinIOArchive(ctx context.Context, inner Store, opts ArchiveOptions) (*Archive, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
	}
	return NewArchive(inner, minioObjects{client: client}, opts.Bucket), nil
}

func (a *Archive) Name() string {
	return a.Store.Name() + "+archive"
}

func (a *Archive) InsertSnapshot(ctx context.Context, origin string, content json.RawMessage) (Snapshot, error) {
	snapshot, err := a.Store.InsertSnapshot(ctx, origin, content)
	if err != nil {
		return snapshot, err
	}
	archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()
	if err := a.put(archiveCtx, snapshot); err != nil {
		log.WithError(err).WithField("snapshot_id", snapshot.ID).Warn("snapshot archive failed")
	}
	return snapshot, nil
}

func (a *Archive) put(ctx context.Context, snapshot Snapshot) error {
	body, err := compress(snapshot.Content)
	if err != nil {
		return err
	}
	return a.objects.PutObject(ctx, a.bucket, archiveKey(snapshot), body)
}

// List returns archived keys, newest first.
func (a *Archive) List(ctx context.Context) ([]string, error) {
	keys, err := a.objects.ListKeys(ctx, a.bucket, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}

// Load returns the decompressed document stored under key.
func (a *Archive) Load(ctx context.Context, key string) (json.RawMessage, error) {
	body, err := a.objects.GetObject(ctx, a.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return decompress(body)
}

// archiveKey sorts lexically by creation time.
func archiveKey(snapshot Snapshot) string {
	stamp := snapshot.CreatedAt.UTC().Format("20060102T150405.000000000Z")
	id := snapshot.ID
	if id == "" {
		id = "local"
	}
	return archivePrefix + stamp + "-" + id + ".json.br"
}

func compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(body []byte) (json.RawMessage, error) {
	raw, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	return json.RawMessage(raw), nil
}

type minioObjects struct {
	client *minio.Client
}

func (m minioObjects) PutObject(ctx context.Context, bucket, key string, body []byte) error {
	_, err := m.client.PutObject(ctx, bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType:     "application/json",
		ContentEncoding: "br",
	})
	return err
}

func (m minioObjects) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (m minioObjects) ListKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for info := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, info.Err
		}
		if strings.HasSuffix(info.Key, ".json.br") {
			keys = append(keys, info.Key)
		}
	}
	return keys, nil
}
