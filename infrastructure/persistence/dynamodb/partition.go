package dynamodb

import (
	"context"
	"fmt"
	"strconv"

	"coredetect/domain/core/valueobjects"
	pkgerrors "coredetect/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// Large records (neighbourhood adjacency, graph edges, clusterings) are split into a
// header item and numbered part items. The header names the generation its parts were
// written under, so a reader following the header never mixes two saves.
//
//	PK=USER#<id> SK=<headerSK>                          header: Generation, Parts, counts
//	PK=USER#<id> SK=<headerSK>#<generation>#<000000>    part:   Entries
//
// maxPartIDs bounds the ids per part, keeping parts well under the 400 KB item limit.
const maxPartIDs = 10000

// idList is one keyed id list inside a part. A list longer than maxPartIDs continues
// in the next part under the same key.
type idList struct {
	Key int64   `dynamodbav:"K"`
	IDs []int64 `dynamodbav:"IDs,omitempty"`
}

type partItem struct {
	PK         string   `dynamodbav:"PK"`
	SK         string   `dynamodbav:"SK"`
	EntityType string   `dynamodbav:"EntityType"`
	Entries    []idList `dynamodbav:"Entries"`
}

// partHeader is embedded in every header item
type partHeader struct {
	Generation string `dynamodbav:"Generation"`
	Parts      int    `dynamodbav:"Parts"`
}

func partPrefix(headerSK, generation string) string {
	return headerSK + "#" + generation + "#"
}

func partSK(headerSK, generation string, index int) string {
	return fmt.Sprintf("%s%06d", partPrefix(headerSK, generation), index)
}

// chunkEntries packs entries into parts of at most limit ids, splitting long lists.
// Every key appears at least once even when its list is empty.
func chunkEntries(entries []idList, limit int) [][]idList {
	var parts [][]idList
	var current []idList
	size := 0
	flush := func() {
		if len(current) > 0 {
			parts = append(parts, current)
			current, size = nil, 0
		}
	}

	for _, e := range entries {
		ids := e.IDs
		for {
			room := limit - size
			if room <= 0 {
				flush()
				room = limit
			}
			n := len(ids)
			if n > room {
				n = room
			}
			current = append(current, idList{Key: e.Key, IDs: ids[:n]})
			// Keys count towards the budget so empty lists cannot grow a part forever
			size += n + 1
			ids = ids[n:]
			if len(ids) == 0 {
				break
			}
		}
	}
	flush()
	return parts
}

// mergeEntries joins entries split across parts, keeping first-seen key order
func mergeEntries(parts [][]idList) ([]int64, map[int64][]int64) {
	var keys []int64
	lists := make(map[int64][]int64)
	for _, part := range parts {
		for _, e := range part {
			existing, seen := lists[e.Key]
			if !seen {
				keys = append(keys, e.Key)
			}
			lists[e.Key] = append(existing, e.IDs...)
		}
	}
	return keys, lists
}

// adjacencyEntries lists every node with its outgoing edges
func adjacencyEntries(nodes []valueobjects.UserID, follows func(valueobjects.UserID) []valueobjects.UserID) []idList {
	entries := make([]idList, 0, len(nodes))
	for _, u := range nodes {
		entries = append(entries, idList{Key: u.Int64(), IDs: userIDsToInt64(follows(u))})
	}
	return entries
}

func adjacencyFromEntries(parts [][]idList) ([]valueobjects.UserID, map[valueobjects.UserID][]valueobjects.UserID, error) {
	keys, lists := mergeEntries(parts)
	nodes, err := userIDsFromInt64(keys)
	if err != nil {
		return nil, nil, err
	}
	follows := make(map[valueobjects.UserID][]valueobjects.UserID, len(nodes))
	for i, u := range nodes {
		ids, err := userIDsFromInt64(lists[keys[i]])
		if err != nil {
			return nil, nil, err
		}
		if len(ids) > 0 {
			follows[u] = ids
		}
	}
	return nodes, follows, nil
}

// writeGeneration writes the parts under a fresh generation, then points the header at
// it. It returns the generation the header pointed at before, whose parts are now stale.
func (t table) writeGeneration(ctx context.Context, operation, pk, headerSK, entityType string, header map[string]types.AttributeValue, parts [][]idList) (string, error) {
	previous, err := t.getItem(ctx, operation, pk, headerSK)
	if err != nil {
		return "", err
	}
	stale := generationOf(previous)

	generation := uuid.NewString()
	items := make([]map[string]types.AttributeValue, 0, len(parts))
	for i, entries := range parts {
		av, err := attributevalue.MarshalMap(partItem{
			PK:         pk,
			SK:         partSK(headerSK, generation, i),
			EntityType: entityType + "_PART",
			Entries:    entries,
		})
		if err != nil {
			return "", fmt.Errorf("failed to marshal %s part: %w", entityType, err)
		}
		items = append(items, av)
	}
	if err := t.batchPut(ctx, operation, items); err != nil {
		return "", err
	}

	header["Generation"] = &types.AttributeValueMemberS{Value: generation}
	header["Parts"] = &types.AttributeValueMemberN{Value: strconv.Itoa(len(parts))}
	if err := t.putItem(ctx, operation, header); err != nil {
		return "", err
	}
	return stale, nil
}

// readGeneration returns the header and the entries of its parts in order.
// The header is nil when the record does not exist.
func (t table) readGeneration(ctx context.Context, operation, pk, headerSK string) (map[string]types.AttributeValue, [][]idList, error) {
	header, err := t.getItem(ctx, operation, pk, headerSK)
	if err != nil || header == nil {
		return nil, nil, err
	}

	var meta partHeader
	if err := attributevalue.UnmarshalMap(header, &meta); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal part header: %w", err)
	}
	if meta.Parts == 0 {
		return header, nil, nil
	}

	raw, err := t.queryPrefix(ctx, operation, pk, partPrefix(headerSK, meta.Generation), nil)
	if err != nil {
		return nil, nil, err
	}
	if len(raw) != meta.Parts {
		return nil, nil, pkgerrors.NewInternalError("stored record is incomplete").
			WithDetail("sk", headerSK).
			WithDetail("expected_parts", meta.Parts).
			WithDetail("found_parts", len(raw))
	}

	parts := make([][]idList, 0, len(raw))
	for _, av := range raw {
		var item partItem
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal part: %w", err)
		}
		parts = append(parts, item.Entries)
	}
	return header, parts, nil
}

// deleteGeneration removes the parts of a superseded generation
func (t table) deleteGeneration(ctx context.Context, operation, pk, headerSK, generation string) error {
	if generation == "" {
		return nil
	}
	projection := expression.NamesList(expression.Name("PK"), expression.Name("SK"))
	raw, err := t.queryPrefix(ctx, operation, pk, partPrefix(headerSK, generation), &projection)
	if err != nil {
		return err
	}
	keys := make([]map[string]types.AttributeValue, 0, len(raw))
	for _, av := range raw {
		keys = append(keys, map[string]types.AttributeValue{"PK": av["PK"], "SK": av["SK"]})
	}
	return t.batchDelete(ctx, operation, keys)
}

func (t table) queryPrefix(ctx context.Context, operation, pk, prefix string, projection *expression.ProjectionBuilder) ([]map[string]types.AttributeValue, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(pk)).
		And(expression.Key("SK").BeginsWith(prefix))
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if projection != nil {
		builder = builder.WithProjection(*projection)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to build part query")
	}

	return t.queryAll(ctx, operation, &dynamodb.QueryInput{
		TableName:                 aws.String(t.name),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
		ScanIndexForward:          aws.Bool(true),
	})
}

func generationOf(header map[string]types.AttributeValue) string {
	if header == nil {
		return ""
	}
	if s, ok := header["Generation"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}
