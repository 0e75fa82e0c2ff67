package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// maxItemBytes is the DynamoDB item size limit
const maxItemBytes = 400 * 1024

// fakeTable keeps items in memory and rejects what DynamoDB would reject:
// items over 400 KB and batches over 25 requests. Queries support the
// "PK = :pk AND begins_with(SK, :prefix)" shape the repositories use.
type fakeTable struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeTable() *fakeTable {
	return &fakeTable{items: make(map[string]map[string]types.AttributeValue)}
}

var _ Client = (*fakeTable)(nil)

func fakeKey(item map[string]types.AttributeValue) string {
	return stringAttr(item["PK"]) + "\x00" + stringAttr(item["SK"])
}

func stringAttr(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeTable) put(item map[string]types.AttributeValue) error {
	if size := itemSize(item); size > maxItemBytes {
		return &smithy.GenericAPIError{
			Code:    "ValidationException",
			Message: fmt.Sprintf("Item size has exceeded the maximum allowed size (%d bytes)", size),
		}
	}
	f.items[fakeKey(item)] = item
	return nil
}

func (f *fakeTable) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[fakeKey(params.Key)]}, nil
}

func (f *fakeTable) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.PutItemOutput{}, f.put(params.Item)
}

func (f *fakeTable) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, fakeKey(params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeTable) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var values []string
	for _, av := range params.ExpressionAttributeValues {
		values = append(values, stringAttr(av))
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("fake table supports partition key plus sort key prefix queries only")
	}

	var out []map[string]types.AttributeValue
	for _, item := range f.items {
		pk, sk := stringAttr(item["PK"]), stringAttr(item["SK"])
		if (pk == values[0] && strings.HasPrefix(sk, values[1])) || (pk == values[1] && strings.HasPrefix(sk, values[0])) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return stringAttr(out[i]["SK"]) < stringAttr(out[j]["SK"]) })
	return &dynamodb.QueryOutput{Items: out, Count: int32(len(out))}, nil
}

func (f *fakeTable) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return nil, fmt.Errorf("fake table does not support scans")
}

func (f *fakeTable) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, requests := range params.RequestItems {
		total += len(requests)
	}
	if total > batchWriteLimit {
		return nil, &smithy.GenericAPIError{Code: "ValidationException", Message: "Too many items requested for the BatchWriteItem call"}
	}

	for _, requests := range params.RequestItems {
		for _, req := range requests {
			switch {
			case req.PutRequest != nil:
				if err := f.put(req.PutRequest.Item); err != nil {
					return nil, err
				}
			case req.DeleteRequest != nil:
				delete(f.items, fakeKey(req.DeleteRequest.Key))
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

// countPrefix counts the items of pk whose sort key starts with prefix
func (f *fakeTable) countPrefix(pk, prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, item := range f.items {
		if stringAttr(item["PK"]) == pk && strings.HasPrefix(stringAttr(item["SK"]), prefix) {
			n++
		}
	}
	return n
}

// itemSize follows the DynamoDB item size rules closely enough to catch oversized items
func itemSize(item map[string]types.AttributeValue) int {
	size := 0
	for name, av := range item {
		size += len(name) + attrSize(av)
	}
	return size
}

func attrSize(av types.AttributeValue) int {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return len(v.Value)
	case *types.AttributeValueMemberN:
		return (len(strings.TrimLeft(v.Value, "-"))+1)/2 + 1
	case *types.AttributeValueMemberB:
		return len(v.Value)
	case *types.AttributeValueMemberBOOL, *types.AttributeValueMemberNULL:
		return 1
	case *types.AttributeValueMemberL:
		size := 3
		for _, e := range v.Value {
			size += 1 + attrSize(e)
		}
		return size
	case *types.AttributeValueMemberM:
		size := 3
		for name, e := range v.Value {
			size += 1 + len(name) + attrSize(e)
		}
		return size
	case *types.AttributeValueMemberNS:
		size := 0
		for _, n := range v.Value {
			size += (len(n)+1)/2 + 1
		}
		return size
	case *types.AttributeValueMemberSS:
		size := 0
		for _, s := range v.Value {
			size += len(s)
		}
		return size
	default:
		return 0
	}
}
