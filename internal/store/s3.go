package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"stockroom-cli/internal/config"
)

// S3 keeps one JSON object per document under <prefix>/<collection>/.
// List returns documents in S3 listing order (lexicographic by escaped key).
type S3 struct {
	client *s3.Client
	bucket string
	base   string
}

// OpenS3 builds a client from the default AWS credential chain, or from the
// static keys in cfg when both are set.
func OpenS3(ctx context.Context, cfg config.S3Config, collection string) (*S3, error) {
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewS3(client, cfg.Bucket, cfg.Prefix, collection), nil
}

func NewS3(client *s3.Client, bucket, prefix, collection string) *S3 {
	parts := make([]string, 0, 2)
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, collection)
	return &S3{client: client, bucket: bucket, base: strings.Join(parts, "/") + "/"}
}

func newS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

func (s *S3) objectKey(name string) string {
	return s.base + url.PathEscape(name) + ".json"
}

func (s *S3) nameFromObjectKey(objKey string) (string, bool) {
	rest, ok := strings.CutPrefix(objKey, s.base)
	if !ok {
		return "", false
	}
	rest, ok = strings.CutSuffix(rest, ".json")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	name, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	return name, true
}

func (s *S3) Get(ctx context.Context, key string) (Document, bool, error) {
	b, found, err := s.getObject(ctx, s.objectKey(key))
	if err != nil || !found {
		return Document{}, false, err
	}
	doc, err := decodeDocument(key, b)
	if err != nil {
		return Document{}, false, err
	}
	return doc, true, nil
}

func (s *S3) getObject(ctx context.Context, objKey string) ([]byte, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &objKey})
	if err != nil {
		if isS3NotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("s3 get %s: %w", objKey, err)
	}
	defer out.Body.Close()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, fmt.Errorf("s3 read %s: %w", objKey, err)
	}
	return b, true, nil
}

func (s *S3) Set(ctx context.Context, key string, doc Document) error {
	if err := checkKey(key); err != nil {
		return err
	}
	b, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	objKey := s.objectKey(key)
	if err := putS3Object(ctx, s.client, s.bucket, objKey, b); err != nil {
		return fmt.Errorf("s3 put %s: %w", objKey, err)
	}
	return nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	objKey := s.objectKey(key)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &objKey}); err != nil {
		if isS3NotFound(err) {
			return nil
		}
		return fmt.Errorf("s3 delete %s: %w", objKey, err)
	}
	return nil
}

func (s *S3) List(ctx context.Context) ([]Entry, error) {
	out := []Entry{}
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{Bucket: &s.bucket, Prefix: aws.String(s.base)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list %s: %w", s.base, err)
		}
		for _, obj := range page.Contents {
			objKey := aws.ToString(obj.Key)
			name, ok := s.nameFromObjectKey(objKey)
			if !ok {
				continue
			}
			b, found, err := s.getObject(ctx, objKey)
			if err != nil {
				return nil, err
			}
			if !found {
				// Deleted between list and get.
				continue
			}
			doc, err := decodeDocument(name, b)
			if err != nil {
				return nil, err
			}
			out = append(out, Entry{Key: name, Document: doc})
		}
	}
	return out, nil
}

func (s *S3) Close() error { return nil }

func putS3Object(ctx context.Context, client *s3.Client, bucket, key string, body []byte) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	return err
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == 404
}
