// Package cloud builds the AWS SDK configuration and service clients shared
// by the store, the event notifier and the image uploader.
package cloud

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	sc "github.com/dmitrijs2005/gophaccounts/internal/server/config"
)

// Seams for tests.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newDynamoDBFromConfig = func(cfg aws.Config, optFns ...func(*dynamodb.Options)) *dynamodb.Client {
		return dynamodb.NewFromConfig(cfg, optFns...)
	}

	newEventBridgeFromConfig = func(cfg aws.Config, optFns ...func(*eventbridge.Options)) *eventbridge.Client {
		return eventbridge.NewFromConfig(cfg, optFns...)
	}

	newS3FromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// Clients creates AWS service clients from one aws.Config.
type Clients struct {
	aws      aws.Config
	endpoint string
	s3       string
}

// Load resolves the AWS configuration: region from config, static
// credentials when both key parts are set, the default chain otherwise.
func Load(ctx context.Context, c *sc.Config) (*Clients, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(c.AWSRegion),
	}
	if c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AWSAccessKeyID, c.AWSSecretAccessKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	s3Endpoint := c.S3BaseEndpoint
	if s3Endpoint == "" {
		s3Endpoint = c.AWSEndpoint
	}

	return &Clients{aws: cfg, endpoint: c.AWSEndpoint, s3: s3Endpoint}, nil
}

func (c *Clients) DynamoDB() *dynamodb.Client {
	return newDynamoDBFromConfig(c.aws, func(o *dynamodb.Options) {
		if c.endpoint != "" {
			o.BaseEndpoint = aws.String(c.endpoint)
		}
	})
}

func (c *Clients) EventBridge() *eventbridge.Client {
	return newEventBridgeFromConfig(c.aws, func(o *eventbridge.Options) {
		if c.endpoint != "" {
			o.BaseEndpoint = aws.String(c.endpoint)
		}
	})
}

// S3 returns a client suited to MinIO/LocalStack when a custom endpoint is
// configured (path-style addressing).
func (c *Clients) S3() *s3.Client {
	return newS3FromConfig(c.aws, func(o *s3.Options) {
		if c.s3 != "" {
			o.BaseEndpoint = aws.String(c.s3)
			o.UsePathStyle = true
		}
	})
}
