package smokerun

import (
	"context"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
)

// DynamoDBAPI is the subset of the DynamoDB client the repository uses.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type DynamoDBRepo struct {
	client    DynamoDBAPI
	tableName *string
}

func NewDynamoDBRepository(client DynamoDBAPI, tableName string) *DynamoDBRepo {
	return &DynamoDBRepo{
		client:    client,
		tableName: aws.String(tableName),
	}
}

func (r *DynamoDBRepo) Create(ctx context.Context, run *Run) error {
	marshaled, err := marshalRun(run)
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: r.tableName,
		Item:      marshaled,
	})
	if err != nil {
		return errors.Wrap(err, "put failed")
	}

	return nil
}

func (r *DynamoDBRepo) Get(ctx context.Context, id string) (*Run, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: r.tableName,
		Key: map[string]types.AttributeValue{
			"Id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "get failed")
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	run := new(Run)
	err = attributevalue.UnmarshalMap(out.Item, run)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal failed")
	}

	return run, nil
}

// marshalRun stores CreatedAt in the fixed-width layout, so the Scan filter can compare strings.
// The default decoder parses it back as RFC3339.
func marshalRun(run *Run) (map[string]types.AttributeValue, error) {
	marshaled, err := attributevalue.MarshalMap(run)
	if err != nil {
		return nil, errors.Wrap(err, "marshal failed")
	}

	marshaled["CreatedAt"] = &types.AttributeValueMemberS{Value: formatTime(run.StartedAt)}

	return marshaled, nil
}

// List scans the table page by page.
func (r *DynamoDBRepo) List(ctx context.Context, after time.Time, before time.Time) ([]*Run, error) {
	var runs []*Run
	var lastEvaluatedKey map[string]types.AttributeValue

	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         r.tableName,
			ExclusiveStartKey: lastEvaluatedKey,
			FilterExpression:  aws.String("CreatedAt >= :createdAfter AND CreatedAt <= :createdBefore"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":createdAfter":  &types.AttributeValueMemberS{Value: formatTime(after)},
				":createdBefore": &types.AttributeValueMemberS{Value: formatTime(before)},
			},
		})
		if err != nil {
			return nil, errors.Wrap(err, "scan failed")
		}

		for _, item := range out.Items {
			run := new(Run)
			err = attributevalue.UnmarshalMap(item, run)
			if err != nil {
				return nil, errors.Wrap(err, "unmarshal failed")
			}

			runs = append(runs, run)
		}

		lastEvaluatedKey = out.LastEvaluatedKey
		if len(lastEvaluatedKey) == 0 {
			break
		}
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})

	return runs, nil
}
