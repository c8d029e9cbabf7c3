package metadata

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PutItemAPI is the subset of the DynamoDB client used by DynamoStore.
type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore writes records to a DynamoDB table whose key is (tenant_id, event_id).
type DynamoStore struct {
	client PutItemAPI
	table  string
}

// NewDynamoStore wraps an existing client.
func NewDynamoStore(client PutItemAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

// OpenDynamoStore builds a client from the default AWS credential chain.
// region and endpoint override the SDK defaults when non-empty.
func OpenDynamoStore(ctx context.Context, table, region, endpoint string) (*DynamoStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewDynamoStore(client, table), nil
}

// Item renders the record as a DynamoDB item.
func (r *Record) Item() (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata record: %w", err)
	}
	return item, nil
}

// Put upserts the record with PutItem.
func (s *DynamoStore) Put(ctx context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	item, err := record.Item()
	if err != nil {
		return err
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("dynamodb put %s/%s: %w", record.TenantID, record.EventID, err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *DynamoStore) Close() error {
	return nil
}
