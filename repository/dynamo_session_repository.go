package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
)

// DynamoAPI is the subset of the DynamoDB client the session table needs.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoSessionRepository stores sessions in a table keyed by `import_id`.
// The batch is kept as a JSON payload; `expires_at` is meant for the
// table's TTL attribute.
type DynamoSessionRepository struct {
	client DynamoAPI
	table  string
	ttl    time.Duration
}

func NewDynamoSessionRepository(client DynamoAPI, table string, ttl time.Duration) *DynamoSessionRepository {
	return &DynamoSessionRepository{client: client, table: table, ttl: ttl}
}

type ddbSession struct {
	ImportID  string `dynamodbav:"import_id"`
	State     string `dynamodbav:"state"`
	Payload   string `dynamodbav:"payload"`
	UpdatedAt string `dynamodbav:"updated_at"`
	ExpiresAt int64  `dynamodbav:"expires_at,omitempty"`
}

func (d *DynamoSessionRepository) item(batch *models.ImportBatch) (map[string]types.AttributeValue, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	ds := ddbSession{
		ImportID:  batch.ID,
		State:     string(batch.State),
		Payload:   string(payload),
		UpdatedAt: batch.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if d.ttl > 0 {
		ds.ExpiresAt = time.Now().Add(d.ttl).Unix()
	}

	item, err := attributevalue.MarshalMap(ds)
	if err != nil {
		return nil, fmt.Errorf("marshal session item: %w", err)
	}
	return item, nil
}

func (d *DynamoSessionRepository) Save(ctx context.Context, batch *models.ImportBatch) error {
	item, err := d.item(batch)
	if err != nil {
		return err
	}
	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(d.table), Item: item}); err != nil {
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

func (d *DynamoSessionRepository) SaveIfState(ctx context.Context, batch *models.ImportBatch, expected models.SubmissionState) error {
	item, err := d.item(batch)
	if err != nil {
		return err
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(import_id) AND #state = :expected"),
		ExpressionAttributeNames: map[string]string{
			"#state": "state",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberS{Value: string(expected)},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		if len(condErr.Item) == 0 {
			return ErrNotFound
		}
		return ErrStateConflict
	}
	if err != nil {
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

func (d *DynamoSessionRepository) Get(ctx context.Context, id string) (*models.ImportBatch, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"import_id": id})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var ds ddbSession
	if err := attributevalue.UnmarshalMap(out.Item, &ds); err != nil {
		return nil, fmt.Errorf("unmarshal session item: %w", err)
	}
	// TTL deletion is lazy, so an expired item can still be read.
	if ds.ExpiresAt > 0 && time.Now().Unix() > ds.ExpiresAt {
		return nil, ErrNotFound
	}

	var batch models.ImportBatch
	if err := json.Unmarshal([]byte(ds.Payload), &batch); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &batch, nil
}

func (d *DynamoSessionRepository) Delete(ctx context.Context, id string) error {
	key, err := attributevalue.MarshalMap(map[string]string{"import_id": id})
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	out, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(d.table),
		Key:          key,
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return fmt.Errorf("dynamodb DeleteItem failed: %w", err)
	}
	if len(out.Attributes) == 0 {
		return ErrNotFound
	}
	return nil
}
