package certificates

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	URLPrefix string
}

// S3Source lists certificate images stored under a bucket prefix. Credentials
// come from the default AWS provider chain.
type S3Source struct {
	client    s3iface.S3API
	bucket    string
	prefix    string
	urlPrefix string
}

var _ Source = (*S3Source)(nil)

func NewS3Source(cfg S3Config) (*S3Source, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("certificates: aws session: %w", err)
	}
	return NewS3SourceWithClient(s3.New(sess), cfg), nil
}

func NewS3SourceWithClient(client s3iface.S3API, cfg S3Config) *S3Source {
	return &S3Source{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		urlPrefix: cfg.URLPrefix,
	}
}

func (s *S3Source) List(ctx context.Context) ([]Certificate, error) {
	var names []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	}
	err := s.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, object := range page.Contents {
			name := strings.TrimPrefix(aws.StringValue(object.Key), s.prefix)
			// Objects in nested "folders" are not part of the gallery.
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			names = append(names, name)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("certificates: list s3://%s/%s: %w", s.bucket, s.prefix, err)
	}
	return fromFilenames(names, s.urlPrefix), nil
}
