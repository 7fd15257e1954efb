package filestore

import (
	"context"
	"errors"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"
)

// S3Config points at a bucket. Endpoint is only needed for S3-compatible
// servers such as MinIO.
type S3Config struct {
	// "http://127.0.0.1:9000"
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// S3 stores objects as keys in one bucket.
type S3 struct {
	client *s3.Client
	bucket string
}

func NewS3(cfg S3Config) *S3 {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client := s3.NewFromConfig(aws.Config{Region: region}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.AccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		}
		o.UsePathStyle = cfg.UsePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return &S3{client: client, bucket: cfg.Bucket}
}

// Save spools r to a temp file so the upload has a known length and the type
// can be sniffed before sending.
func (b *S3) Save(ctx context.Context, owner, name string, r io.Reader) (Object, error) {
	key := ObjectName(owner, name)
	tmp, size, err := spool(r, path.Ext(name))
	if err != nil {
		return Object{}, err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	mt, err := mimetype.DetectFile(tmp.Name())
	if err != nil {
		return Object{}, err
	}
	if err := b.upload(ctx, key, tmp, size, mt.String()); err != nil {
		return Object{}, err
	}
	return Object{MimeType: mt.String(), Size: size, Path: key}, nil
}

func (b *S3) Put(ctx context.Context, p string, r io.Reader) error {
	key, err := cleanKey(p)
	if err != nil {
		return err
	}
	tmp, size, err := spool(r, "")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	return b.upload(ctx, key, tmp, size, "")
}

func (b *S3) upload(ctx context.Context, key string, f *os.File, size int64, contentType string) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	in := &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	_, err := b.client.PutObject(ctx, in)
	return err
}

func (b *S3) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	key, err := cleanKey(p)
	if err != nil {
		return nil, err
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return out.Body, nil
}

func (b *S3) Exists(ctx context.Context, p string) (bool, error) {
	key, err := cleanKey(p)
	if err != nil {
		return false, err
	}
	_, err = b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b *S3) Remove(ctx context.Context, p string) error {
	key, err := cleanKey(p)
	if err != nil {
		return err
	}
	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isS3NotFound(err) {
		return err
	}
	return nil
}

// Localize downloads the object to a temp file keeping its extension, so
// sniffing and external tools see the same name shape as on disk.
func (b *S3) Localize(ctx context.Context, p string) (string, func(), error) {
	rc, err := b.Open(ctx, p)
	if err != nil {
		return "", noop, err
	}
	defer rc.Close()
	tmp, _, err := spool(rc, path.Ext(p))
	if err != nil {
		return "", noop, err
	}
	name := tmp.Name()
	_ = tmp.Close()
	return name, func() { _ = os.Remove(name) }, nil
}

func spool(r io.Reader, ext string) (*os.File, int64, error) {
	tmp, err := os.CreateTemp("", "iorganise-*"+ext)
	if err != nil {
		return nil, 0, err
	}
	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, 0, err
	}
	return tmp, n, nil
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
