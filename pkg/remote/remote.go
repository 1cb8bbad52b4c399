// Package remote moves dataset files between object storage and the local
// disk. Files named s3://bucket/key or gs://bucket/object are downloaded into a
// cache directory before they are opened and uploaded after they are written.
package remote

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/strata/pkg/errors"
)

const (
	SchemeS3  = "s3"
	SchemeGCS = "gs"

	defaultPartSize = 5 * 1024 * 1024
)

// Config configures object storage access.
type Config struct {
	// CacheDir receives downloaded files. Defaults to os.TempDir()/strata.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	// Region is the AWS region. Empty uses the default credential chain's.
	Region string `yaml:"region" json:"region"`
	// CredentialsFile is a GCP service account file. Empty uses ADC.
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	PartSize        int64  `yaml:"part_size" json:"part_size"`
	Concurrency     int    `yaml:"concurrency" json:"concurrency"`
}

// Location is a parsed object URI.
type Location struct {
	Scheme string
	Bucket string
	Key    string
}

func (l Location) String() string {
	return l.Scheme + "://" + l.Bucket + "/" + l.Key
}

// IsRemote reports whether path names an object store location.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, SchemeS3+"://") || strings.HasPrefix(path, SchemeGCS+"://")
}

// Parse splits an s3:// or gs:// URI.
func Parse(uri string) (Location, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok || (scheme != SchemeS3 && scheme != SchemeGCS) {
		return Location{}, errors.Newf(errors.ErrorTypeConfig, "unsupported object URI %q", uri)
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return Location{}, errors.Newf(errors.ErrorTypeConfig, "object URI %q needs a bucket and a key", uri)
	}
	return Location{Scheme: scheme, Bucket: bucket, Key: key}, nil
}

// Fetcher downloads and uploads objects. Clients are created on first use.
type Fetcher struct {
	cfg    Config
	logger *zap.Logger

	mu  sync.Mutex
	s3  *s3.Client
	gcs *storage.Client
}

// NewFetcher returns a Fetcher. A nil logger disables logging.
func NewFetcher(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), "strata")
	}
	if cfg.PartSize <= 0 {
		cfg.PartSize = defaultPartSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = manager.DefaultDownloadConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{cfg: cfg, logger: logger}
}

// CachePath returns where loc is stored locally.
func (f *Fetcher) CachePath(loc Location) string {
	return filepath.Join(f.cfg.CacheDir, loc.Scheme, loc.Bucket, filepath.FromSlash(loc.Key))
}

// Fetch downloads uri unless a cached copy already exists and returns the
// local path.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (string, error) {
	loc, err := Parse(uri)
	if err != nil {
		return "", err
	}
	local := f.CachePath(loc)
	if _, err := os.Stat(local); err == nil {
		f.logger.Debug("using cached object", zap.String("uri", uri), zap.String("path", local))
		return local, nil
	}

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to create cache directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(local), ".fetch-*")
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to create cache file")
	}
	defer os.Remove(tmp.Name())

	switch loc.Scheme {
	case SchemeS3:
		err = f.downloadS3(ctx, loc, tmp)
	case SchemeGCS:
		err = f.downloadGCS(ctx, loc, tmp)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "failed to download object").
			WithDetail("uri", uri)
	}
	if err := os.Rename(tmp.Name(), local); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to move downloaded object into cache")
	}

	f.logger.Info("downloaded object", zap.String("uri", uri), zap.String("path", local))
	return local, nil
}

// Upload copies the local file to uri and refreshes the cached copy.
func (f *Fetcher) Upload(ctx context.Context, localPath, uri string) error {
	loc, err := Parse(uri)
	if err != nil {
		return err
	}
	src, err := os.Open(localPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to open upload source")
	}
	defer src.Close()

	switch loc.Scheme {
	case SchemeS3:
		err = f.uploadS3(ctx, loc, src)
	case SchemeGCS:
		err = f.uploadGCS(ctx, loc, src)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to upload object").WithDetail("uri", uri)
	}

	// The next Fetch must see the new content.
	_ = os.Remove(f.CachePath(loc))
	f.logger.Info("uploaded object", zap.String("uri", uri))
	return nil
}

// Close releases the storage clients.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gcs != nil {
		err := f.gcs.Close()
		f.gcs = nil
		return err
	}
	return nil
}

func (f *Fetcher) s3Client(ctx context.Context) (*s3.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.s3 != nil {
		return f.s3, nil
	}
	var opts []func(*awsconfig.LoadOptions) error
	if f.cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(f.cfg.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	f.s3 = s3.NewFromConfig(cfg)
	return f.s3, nil
}

func (f *Fetcher) gcsClient(ctx context.Context) (*storage.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gcs != nil {
		return f.gcs, nil
	}
	var opts []option.ClientOption
	if f.cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(f.cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	f.gcs = client
	return f.gcs, nil
}

func (f *Fetcher) downloadS3(ctx context.Context, loc Location, dst io.WriterAt) error {
	client, err := f.s3Client(ctx)
	if err != nil {
		return err
	}
	downloader := manager.NewDownloader(client, func(d *manager.Downloader) {
		d.PartSize = f.cfg.PartSize
		d.Concurrency = f.cfg.Concurrency
	})
	_, err = downloader.Download(ctx, dst, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	return err
}

func (f *Fetcher) uploadS3(ctx context.Context, loc Location, src io.Reader) error {
	client, err := f.s3Client(ctx)
	if err != nil {
		return err
	}
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = f.cfg.PartSize
		u.Concurrency = f.cfg.Concurrency
	})
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(loc.Bucket),
		Key:         aws.String(loc.Key),
		Body:        src,
		ContentType: aws.String("application/vnd.apache.parquet"),
	})
	return err
}

func (f *Fetcher) downloadGCS(ctx context.Context, loc Location, dst io.Writer) error {
	client, err := f.gcsClient(ctx)
	if err != nil {
		return err
	}
	r, err := client.Bucket(loc.Bucket).Object(loc.Key).NewReader(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.Copy(dst, r)
	return err
}

func (f *Fetcher) uploadGCS(ctx context.Context, loc Location, src io.Reader) error {
	client, err := f.gcsClient(ctx)
	if err != nil {
		return err
	}
	w := client.Bucket(loc.Bucket).Object(loc.Key).NewWriter(ctx)
	w.ContentType = "application/vnd.apache.parquet"
	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
