package idempotency

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// simpleMock is a small in-memory DynamoDB table keyed by idempotency_key. It
// understands the handful of condition and update expressions the store issues.
type simpleMock struct {
	mu          sync.Mutex
	table       map[string]map[string]types.AttributeValue
	putCalls    int
	getCalls    int
	updateCalls int
	err         error
}

func newSimpleMock() *simpleMock {
	return &simpleMock{
		table: map[string]map[string]types.AttributeValue{},
	}
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func num(av types.AttributeValue) int64 {
	if n, ok := av.(*types.AttributeValueMemberN); ok {
		v, _ := strconv.ParseInt(n.Value, 10, 64)
		return v
	}
	return 0
}

func (m *simpleMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.err != nil {
		return nil, m.err
	}
	k := str(params.Item["idempotency_key"])
	if k == "" {
		return nil, errors.New("missing key")
	}
	if params.ConditionExpression != nil {
		if existing, ok := m.table[k]; ok {
			cond := *params.ConditionExpression
			expired := strings.Contains(cond, "expires_at < :now") &&
				num(existing["expires_at"]) < num(params.ExpressionAttributeValues[":now"])
			if !expired {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}
	m.table[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *simpleMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.err != nil {
		return nil, m.err
	}
	item, ok := m.table[str(params.Key["idempotency_key"])]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *simpleMock) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.err != nil {
		return nil, m.err
	}
	k := str(params.Key["idempotency_key"])
	item, ok := m.table[k]

	name := func(n string) string {
		if real, ok := params.ExpressionAttributeNames[n]; ok {
			return real
		}
		return n
	}

	if params.ConditionExpression != nil {
		cond := *params.ConditionExpression
		switch {
		case cond == "attribute_exists(idempotency_key)":
			if !ok {
				return nil, &types.ConditionalCheckFailedException{}
			}
		case strings.Contains(cond, " = "):
			parts := strings.SplitN(cond, " = ", 2)
			if !ok || str(item[name(parts[0])]) != str(params.ExpressionAttributeValues[parts[1]]) {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}
	if !ok {
		item = map[string]types.AttributeValue{"idempotency_key": params.Key["idempotency_key"]}
	}

	expr := strings.TrimPrefix(*params.UpdateExpression, "SET ")
	for _, assign := range strings.Split(expr, ", ") {
		parts := strings.SplitN(assign, " = ", 2)
		item[name(parts[0])] = params.ExpressionAttributeValues[parts[1]]
	}
	m.table[k] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}
