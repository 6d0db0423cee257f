package users

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
)

// DynamoDBAPI is the part of *dynamodb.Client the repository uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoDBRepository stores users in a single table with partition key
// "email". When idIndex names a global secondary index on "uuid", lookups by
// identifier query it instead of scanning the table.
type DynamoDBRepository struct {
	client  DynamoDBAPI
	table   string
	idIndex string
}

func NewDynamoDBRepository(client DynamoDBAPI, table, idIndex string) *DynamoDBRepository {
	return &DynamoDBRepository{client: client, table: table, idIndex: idIndex}
}

func (r *DynamoDBRepository) key(email string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		models.FieldEmail: &types.AttributeValueMemberS{Value: email},
	}
}

func (r *DynamoDBRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            r.key(email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, common.ErrorNotFound
	}

	user := &models.User{}
	if err := attributevalue.UnmarshalMap(out.Item, user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return user, nil
}

func (r *DynamoDBRepository) ScanByField(ctx context.Context, field string, value any) ([]*models.User, error) {
	if field == models.FieldUUID && r.idIndex != "" {
		return r.queryIndex(ctx, value)
	}

	expr, err := expression.NewBuilder().
		WithFilter(expression.Name(field).Equal(expression.Value(value))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build filter: %w", err)
	}

	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.table),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	result := make([]*models.User, 0)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		users, err := decodeItems(page.Items)
		if err != nil {
			return nil, err
		}
		result = append(result, users...)
	}
	return result, nil
}

func (r *DynamoDBRepository) queryIndex(ctx context.Context, value any) ([]*models.User, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key(models.FieldUUID).Equal(expression.Value(value))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build key condition: %w", err)
	}

	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		IndexName:                 aws.String(r.idIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	result := make([]*models.User, 0)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		users, err := decodeItems(page.Items)
		if err != nil {
			return nil, err
		}
		result = append(result, users...)
	}
	return result, nil
}

func decodeItems(items []map[string]types.AttributeValue) ([]*models.User, error) {
	var decoded []models.User
	if err := attributevalue.UnmarshalListOfMaps(items, &decoded); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	users := make([]*models.User, 0, len(decoded))
	for i := range decoded {
		users = append(users, &decoded[i])
	}
	return users, nil
}

func (r *DynamoDBRepository) Put(ctx context.Context, user *models.User) error {
	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(models.FieldEmail))).
		Build()
	if err != nil {
		return fmt.Errorf("build condition: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.table),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *DynamoDBRepository) UpdateFields(ctx context.Context, email string, fields map[string]any) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: nothing to update", common.ErrorInvalidField)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if !isUpdatable(name) {
			return fmt.Errorf("%w: %s", common.ErrorInvalidField, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var update expression.UpdateBuilder
	for _, name := range names {
		update = update.Set(expression.Name(name), expression.Value(fields[name]))
	}

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name(models.FieldEmail))).
		Build()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       r.key(email),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
