// Package dynamodb implements the ledger and transaction ports on Amazon
// DynamoDB.
package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/config"
)

// Client is the subset of the DynamoDB API the adapters use.
type Client interface {
	GetItem(ctx context.Context, params *awsdynamodb.GetItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.GetItemOutput, error)
	TransactWriteItems(ctx context.Context, params *awsdynamodb.TransactWriteItemsInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.TransactWriteItemsOutput, error)
}

var _ Client = (*awsdynamodb.Client)(nil)

// LoadAWSConfig loads the shared AWS configuration for the configured region.
func LoadAWSConfig(ctx context.Context, cfg config.AWS) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
}

// NewClient creates a DynamoDB client, pointed at cfg.Endpoint when set.
func NewClient(awsCfg aws.Config, cfg config.AWS) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
}
