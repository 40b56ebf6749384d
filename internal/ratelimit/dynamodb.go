package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// dynamodbAPI is the subset of the DynamoDB client used by DynamoStore.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore keeps hits in a DynamoDB table keyed by PK = "RL#<token>".
// Items carry a ttl attribute one window past their newest hit so the table
// can expire idle tokens.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
}

// NewDynamoStore creates a DynamoStore.
func NewDynamoStore(api dynamodbAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("ratelimit: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("ratelimit: table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName}, nil
}

func tokenPK(token string) string {
	return "RL#" + token
}

func (s *DynamoStore) Hits(ctx context.Context, token string) ([]time.Time, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: tokenPK(token)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("ratelimit: get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}

	list, ok := out.Item["hits"].(*types.AttributeValueMemberL)
	if !ok {
		return nil, nil
	}
	hits := make([]time.Time, 0, len(list.Value))
	for _, v := range list.Value {
		n, ok := v.(*types.AttributeValueMemberN)
		if !ok {
			return nil, fmt.Errorf("ratelimit: hit is not a number")
		}
		ms, err := strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ratelimit: parse hit: %w", err)
		}
		hits = append(hits, time.UnixMilli(ms))
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Before(hits[j]) })
	return hits, nil
}

func (s *DynamoStore) SetHits(ctx context.Context, token string, hits []time.Time) error {
	values := make([]types.AttributeValue, 0, len(hits))
	var newest time.Time
	for _, t := range hits {
		values = append(values, &types.AttributeValueMemberN{Value: strconv.FormatInt(t.UnixMilli(), 10)})
		if t.After(newest) {
			newest = t
		}
	}
	if newest.IsZero() {
		newest = time.Now()
	}

	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"PK":   &types.AttributeValueMemberS{Value: tokenPK(token)},
			"hits": &types.AttributeValueMemberL{Value: values},
			"ttl":  &types.AttributeValueMemberN{Value: strconv.FormatInt(newest.Add(Window).Unix(), 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("ratelimit: put item: %w", err)
	}
	return nil
}
