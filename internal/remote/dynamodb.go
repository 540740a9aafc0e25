package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/jaekwang-park/tasksync/internal/model"
)

// maxTransactItems is the TransactWriteItems limit.
const maxTransactItems = 100

// DynamoDBAPI is the subset of the DynamoDB client the adapter calls.
type DynamoDBAPI interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoDB stores one item per task keyed by "id", with a global secondary
// index on "ownerId" for listing.
type DynamoDB struct {
	client     DynamoDBAPI
	table      string
	ownerIndex string
}

func NewDynamoDB(client DynamoDBAPI, table, ownerIndex string) *DynamoDB {
	return &DynamoDB{client: client, table: table, ownerIndex: ownerIndex}
}

// OpenDynamoDB builds a client from the default AWS config chain. A non-empty
// endpoint points the client at DynamoDB Local or another compatible service.
func OpenDynamoDB(ctx context.Context, region, endpoint, table, ownerIndex string) (*DynamoDB, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewDynamoDB(client, table, ownerIndex), nil
}

func (d *DynamoDB) ListByOwner(ctx context.Context, ownerID string) ([]model.Task, error) {
	paginator := dynamodb.NewQueryPaginator(d.client, &dynamodb.QueryInput{
		TableName:              aws.String(d.table),
		IndexName:              aws.String(d.ownerIndex),
		KeyConditionExpression: aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "ownerId",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: ownerID},
		},
	})

	tasks := []model.Task{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapDynamoError("query", err)
		}
		var records []Record
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &records); err != nil {
			return nil, fmt.Errorf("failed to decode remote tasks: %w", err)
		}
		for _, r := range records {
			tasks = append(tasks, r.Task())
		}
	}
	return tasks, nil
}

func (d *DynamoDB) CreateOrReplace(ctx context.Context, task model.Task) error {
	item, err := attributevalue.MarshalMap(RecordOf(task))
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", task.ID, err)
	}
	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	}); err != nil {
		return mapDynamoError("put", err)
	}
	return nil
}

func (d *DynamoDB) Update(ctx context.Context, id string, patch model.TaskPatch, updatedAt time.Time) error {
	expr, names, values := updateExpression(patch, updatedAt)

	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.table),
		Key:                       itemKey(id),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return mapDynamoError("update", err)
	}
	return nil
}

func (d *DynamoDB) Delete(ctx context.Context, id string) error {
	if _, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       itemKey(id),
	}); err != nil {
		return mapDynamoError("delete", err)
	}
	return nil
}

func (d *DynamoDB) BatchWrite(ctx context.Context, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	if len(tasks) > maxTransactItems {
		return fmt.Errorf("%d items exceeds the transaction limit of %d: %w", len(tasks), maxTransactItems, ErrTooLarge)
	}

	items := make([]types.TransactWriteItem, 0, len(tasks))
	for _, t := range tasks {
		item, err := attributevalue.MarshalMap(RecordOf(t))
		if err != nil {
			return fmt.Errorf("failed to encode task %s: %w", t.ID, err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{TableName: aws.String(d.table), Item: item},
		})
	}

	if _, err := d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	}); err != nil {
		return mapDynamoError("transact write", err)
	}
	return nil
}

func itemKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func updateExpression(patch model.TaskPatch, updatedAt time.Time) (string, map[string]string, map[string]types.AttributeValue) {
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	var sets []string

	set := func(attr string, v types.AttributeValue) {
		names["#"+attr] = attr
		values[":"+attr] = v
		sets = append(sets, fmt.Sprintf("#%s = :%s", attr, attr))
	}

	if patch.Title != nil {
		set("title", &types.AttributeValueMemberS{Value: *patch.Title})
	}
	if patch.Description != nil {
		set("description", &types.AttributeValueMemberS{Value: *patch.Description})
	}
	if patch.Completed != nil {
		set("completed", &types.AttributeValueMemberBOOL{Value: *patch.Completed})
	}
	if patch.ReminderAt != nil && !patch.ClearReminder {
		set("reminderAt", millisValue(patch.ReminderAt.UnixMilli()))
	}
	set("updatedAt", millisValue(updatedAt.UnixMilli()))

	expr := "SET " + strings.Join(sets, ", ")
	if patch.ClearReminder {
		names["#reminderAt"] = "reminderAt"
		expr += " REMOVE #reminderAt"
	}
	return expr, names, values
}

func millisValue(ms int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ms)}
}

// mapDynamoError converts a failed conditional check into ErrNotFound.
func mapDynamoError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException" {
		return fmt.Errorf("dynamodb %s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("dynamodb %s: %w", op, err)
}

var _ TaskStore = (*DynamoDB)(nil)
