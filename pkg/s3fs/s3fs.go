// Package s3fs serves a compiled application from an S3 bucket as an
// io/fs file system, so the route scanner, the rendering engine and the
// static file handler read the same objects a local dist directory
// would hold.
//
// Directories are key prefixes. Reads are streamed and not cached;
// compiled programs are cached by the rendering engine.
package s3fs

import (
	"context"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/duduk-dev/duduk/internal/errors"
)

// Client is the subset of *s3.Client the file system uses.
type Client interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config locates the application in a bucket.
type Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// NewClient builds an S3 client from cfg. Without an access key the
// client makes anonymous requests, which suits public buckets.
func NewClient(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.PathStyle,
		Credentials:  aws.AnonymousCredentials{},
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" {
		creds := aws.Credentials{
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			SessionToken:    cfg.SessionToken,
			Source:          "duduk config",
		}
		opts.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) { return creds, nil },
		))
	}
	return s3.New(opts)
}

// FS is a read-only file system over the objects below a key prefix.
type FS struct {
	client  Client
	bucket  string
	prefix  string
	timeout time.Duration
}

// Option configures an FS.
type Option func(*FS)

// WithTimeout bounds every S3 request. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(f *FS) {
		f.timeout = d
	}
}

// New returns the file system for bucket below prefix.
func New(client Client, bucket, prefix string, opts ...Option) *FS {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	f := &FS{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FS) context() (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), f.timeout)
}

func (f *FS) key(name string) string {
	if name == "." {
		return f.prefix
	}
	return f.prefix + name
}

// Open opens the named object, or the directory the name is a prefix of.
func (f *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return &dir{fsys: f, name: name}, nil
	}

	ctx, cancel := f.context()
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key(name)),
	})
	if err == nil {
		return &file{body: out.Body, cancel: cancel, info: objectInfo(name, out.ContentLength, out.LastModified)}, nil
	}
	cancel()
	if !isNotFound(err) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	isDir, err := f.hasChildren(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	if !isDir {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &dir{fsys: f, name: name}, nil
}

func (f *FS) hasChildren(name string) (bool, error) {
	ctx, cancel := f.context()
	defer cancel()
	out, err := f.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(f.bucket),
		Prefix:  aws.String(f.key(name) + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, err
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

// ReadDir lists the directory name in name order.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	prefix := f.key(name)
	if name != "." {
		prefix += "/"
	}

	ctx, cancel := f.context()
	defer cancel()

	var entries []fs.DirEntry
	paginator := s3.NewListObjectsV2Paginator(f.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(f.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
		}
		for _, p := range page.CommonPrefixes {
			sub := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(p.Prefix), prefix), "/")
			if sub != "" {
				entries = append(entries, fs.FileInfoToDirEntry(dirInfo(sub)))
			}
		}
		for _, obj := range page.Contents {
			base := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			// Folder placeholder objects created by consoles.
			if base == "" {
				continue
			}
			entries = append(entries, fs.FileInfoToDirEntry(objectInfo(base, obj.Size, obj.LastModified)))
		}
	}

	if len(entries) == 0 && name != "." {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return entries, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		switch coded.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// file is an open object. It streams and does not seek.
type file struct {
	body   io.ReadCloser
	cancel context.CancelFunc
	info   fileInfo
}

func (f *file) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *file) Read(p []byte) (int, error) { return f.body.Read(p) }

func (f *file) Close() error {
	defer f.cancel()
	return f.body.Close()
}

// dir is an open directory.
type dir struct {
	fsys    *FS
	name    string
	entries []fs.DirEntry
	loaded  bool
	offset  int
}

func (d *dir) Stat() (fs.FileInfo, error) { return dirInfo(path.Base(d.name)), nil }
func (d *dir) Close() error               { return nil }

func (d *dir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *dir) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.loaded {
		entries, err := d.fsys.ReadDir(d.name)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		d.entries, d.loaded = entries, true
	}

	rest := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(rest))
	d.offset += n
	return rest[:n], nil
}

type fileInfo struct {
	name    string
	size    int64
	modTime time.Time
	dir     bool
}

func objectInfo(name string, size *int64, modTime *time.Time) fileInfo {
	return fileInfo{
		name:    path.Base(name),
		size:    aws.ToInt64(size),
		modTime: aws.ToTime(modTime),
	}
}

func dirInfo(name string) fileInfo {
	return fileInfo{name: name, dir: true}
}

func (i fileInfo) Name() string       { return i.name }
func (i fileInfo) Size() int64        { return i.size }
func (i fileInfo) ModTime() time.Time { return i.modTime }
func (i fileInfo) IsDir() bool        { return i.dir }
func (i fileInfo) Sys() any           { return nil }

func (i fileInfo) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

var (
	_ fs.ReadDirFS   = (*FS)(nil)
	_ fs.ReadDirFile = (*dir)(nil)
)
