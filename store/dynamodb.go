package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

const (
	// Schema of the DynamoDB table
	tablePartitionKey   = "namespace"
	tableSortKey        = "id"
	timeKeyAttribute    = "at"
	timeIndex           = "by-time"
	recordJSONAttribute = "record"
	endpointAttribute   = "endpoint"
	txnAttribute        = "transaction"

	tableWaitTime = 2 * time.Minute
)

// DynamoDBStore keeps records in a table whose partition key is the store prefix and whose sort
// key is the record ID. List queries a local secondary index sorted by timeKey, since ksuids only
// order records created in different seconds.
type DynamoDBStore struct {
	dynamodb *dynamodb.Client
	table    string
	prefix   string
}

func NewDynamoDBStore(ctx context.Context, config DynamoDBConfig, prefix string) (*DynamoDBStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
	})
	d := &DynamoDBStore{dynamodb: client, table: config.Table, prefix: prefix}
	if err := d.ensureTable(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DynamoDBStore) ensureTable(ctx context.Context) error {
	_, err := d.dynamodb.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.table)})
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return d.createTable(ctx)
	}
	return err
}

func (d *DynamoDBStore) createTable(ctx context.Context) error {
	_, err := d.dynamodb.CreateTable(ctx, &dynamodb.CreateTableInput{
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(tablePartitionKey), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(tableSortKey), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(timeKeyAttribute), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(tablePartitionKey), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(tableSortKey), KeyType: types.KeyTypeRange},
		},
		LocalSecondaryIndexes: []types.LocalSecondaryIndex{{
			IndexName: aws.String(timeIndex),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(tablePartitionKey), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(timeKeyAttribute), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}},
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(1),
			WriteCapacityUnits: aws.Int64(1),
		},
		TableName: aws.String(d.table),
	})
	if err != nil {
		return fmt.Errorf("creating table %s: %w", d.table, err)
	}
	waiter := dynamodb.NewTableExistsWaiter(d.dynamodb)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.table)}, tableWaitTime)
}

func (d *DynamoDBStore) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		tablePartitionKey: &types.AttributeValueMemberS{Value: d.prefix},
		tableSortKey:      &types.AttributeValueMemberS{Value: id},
	}
}

// timeKey sorts lexically in RequestTime order, with the ID breaking ties.
func timeKey(rec wslog.Record) string {
	var nanos int64
	if !rec.RequestTime.IsZero() && rec.RequestTime.UnixNano() > 0 {
		nanos = rec.RequestTime.UnixNano()
	}
	return fmt.Sprintf("%020d#%s", nanos, rec.ID)
}

func (d *DynamoDBStore) Save(ctx context.Context, rec wslog.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	item := d.key(rec.ID)
	item[timeKeyAttribute] = &types.AttributeValueMemberS{Value: timeKey(rec)}
	item[recordJSONAttribute] = &types.AttributeValueMemberS{Value: string(data)}
	item[endpointAttribute] = &types.AttributeValueMemberS{Value: rec.Endpoint}
	item[txnAttribute] = &types.AttributeValueMemberS{Value: rec.Transaction}
	_, err = d.dynamodb.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(d.table), Item: item})
	return err
}

func itemRecord(item map[string]types.AttributeValue) (wslog.Record, error) {
	var rec wslog.Record
	attr, ok := item[recordJSONAttribute].(*types.AttributeValueMemberS)
	if !ok {
		return rec, fmt.Errorf("item has no %s attribute", recordJSONAttribute)
	}
	err := json.Unmarshal([]byte(attr.Value), &rec)
	return rec, err
}

func (d *DynamoDBStore) Get(ctx context.Context, id string) (wslog.Record, bool, error) {
	result, err := d.dynamodb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            d.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil || result == nil {
		return wslog.Record{}, false, err
	}
	if result.Item == nil {
		return wslog.Record{}, false, nil
	}
	rec, err := itemRecord(result.Item)
	if err != nil {
		return wslog.Record{}, false, err
	}
	return rec, true, nil
}

func (d *DynamoDBStore) List(ctx context.Context, q Query) ([]wslog.Record, error) {
	paginator := dynamodb.NewQueryPaginator(d.dynamodb, &dynamodb.QueryInput{
		TableName:              aws.String(d.table),
		IndexName:              aws.String(timeIndex),
		ConsistentRead:         aws.Bool(true),
		ScanIndexForward:       aws.Bool(false),
		KeyConditionExpression: aws.String("#ns = :ns"),
		ExpressionAttributeNames: map[string]string{
			"#ns": tablePartitionKey,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ns": &types.AttributeValueMemberS{Value: d.prefix},
		},
	})
	ret := make([]wslog.Record, 0, q.limit())
	for paginator.HasMorePages() && len(ret) < q.limit() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			rec, err := itemRecord(item)
			if err != nil {
				return nil, err
			}
			if q.matches(rec) {
				ret = append(ret, rec)
				if len(ret) == q.limit() {
					break
				}
			}
		}
	}
	return ret, nil
}

// Reset drops and recreates the table.
func (d *DynamoDBStore) Reset(ctx context.Context) error {
	_, err := d.dynamodb.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(d.table)})
	var notFound *types.ResourceNotFoundException
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("deleting table %s: %w", d.table, err)
	}
	if err == nil {
		waiter := dynamodb.NewTableNotExistsWaiter(d.dynamodb)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.table)}, tableWaitTime); err != nil {
			return err
		}
	}
	return d.createTable(ctx)
}

func (d *DynamoDBStore) Close() error { return nil }
