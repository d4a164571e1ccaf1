package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wpsync/wpsync/internal/utils"
)

// S3Dialer opens channels against object storage. The endpoint user is
// the access key ID and the credential password is the secret key;
// when both are empty the default AWS credential chain applies.
type S3Dialer struct{}

func (d *S3Dialer) Dial(ctx context.Context, ep Endpoint, creds Credentials) (Channel, error) {
	if ep.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}

	region := ep.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if ep.User != "" && creds.Password != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ep.User, creds.Password, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if ep.URL != "" {
			o.BaseEndpoint = aws.String(ep.URL)
			o.UsePathStyle = true
		}
		if ep.PathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Channel{client: client, bucket: ep.Bucket}, nil
}

// S3Channel implements Channel on a bucket. Paths are object keys;
// directories do not exist, so MkdirAll and Chmod are no-ops.
type S3Channel struct {
	client *s3.Client
	bucket string
}

func (c *S3Channel) Exists(key string) (bool, error) {
	_, err := c.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("head %s: %w", key, err)
	}
	return true, nil
}

func (c *S3Channel) MkdirAll(string) error { return nil }

func (c *S3Channel) Chmod(string, fs.FileMode) error { return nil }

func (c *S3Channel) Put(ctx context.Context, localPath, key string) (int64, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", localPath, err)
	}

	contentType := utils.DetectContentType(key)
	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &c.bucket,
		Key:           &key,
		Body:          src,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   &contentType,
	})
	if err != nil {
		return 0, fmt.Errorf("put %s: %w", key, err)
	}
	return info.Size(), nil
}

func (c *S3Channel) Get(ctx context.Context, key, localPath string) (int64, error) {
	resp, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return 0, fmt.Errorf("%w: %s", ErrNotExist, key)
		}
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	defer resp.Body.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", localPath, err)
	}

	n, err := io.Copy(dst, resp.Body)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, fmt.Errorf("download %s: %w", key, err)
	}
	return n, nil
}

// Remove deletes the object. S3 deletes are idempotent, so an absent
// key still succeeds.
func (c *S3Channel) Remove(key string) error {
	_, err := c.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (c *S3Channel) ListTree(ctx context.Context, root string) ([]Entry, error) {
	prefix := root
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	input := &s3.ListObjectsV2Input{Bucket: &c.bucket}
	if prefix != "" {
		input.Prefix = &prefix
	}

	var entries []Entry
	paginator := s3.NewListObjectsV2Paginator(c.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", root, err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			rel := strings.TrimPrefix(key, prefix)
			// Zero-byte keys ending in "/" are directory placeholders.
			if rel == "" || strings.HasSuffix(rel, "/") {
				continue
			}
			entries = append(entries, Entry{
				RelPath: rel,
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}

	return entries, nil
}

func (c *S3Channel) Close() error { return nil }
