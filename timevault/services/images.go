package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ImageService resolves card artwork stored in an S3-compatible bucket
// (DigitalOcean Spaces). Upload happens through admin tooling elsewhere;
// the platform only builds URLs and verifies objects exist.
type ImageService struct {
	client   *s3.Client
	bucket   string
	region   string
	cardRoot string
}

func NewImageService(key, secret, region, bucket, cardRoot string) (*ImageService, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load spaces config: %w", err)
	}

	return &ImageService{
		client:   s3.NewFromConfig(cfg),
		bucket:   bucket,
		region:   region,
		cardRoot: strings.Trim(cardRoot, "/"),
	}, nil
}

// CardImageURL builds the public CDN URL for a stored image path. Empty
// paths yield an empty URL so callers can omit the field.
func (s *ImageService) CardImageURL(imagePath string) string {
	if imagePath == "" {
		return ""
	}
	key := strings.TrimPrefix(imagePath, "/")
	if s.cardRoot != "" {
		key = s.cardRoot + "/" + key
	}
	return fmt.Sprintf("https://%s.%s.cdn.digitaloceanspaces.com/%s", s.bucket, s.region, key)
}

// ImageExists checks the object without fetching it; the batch importer
// uses this to flag cards whose artwork was never uploaded.
func (s *ImageService) ImageExists(ctx context.Context, imagePath string) bool {
	if imagePath == "" {
		return false
	}
	key := strings.TrimPrefix(imagePath, "/")
	if s.cardRoot != "" {
		key = s.cardRoot + "/" + key
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err == nil
}
