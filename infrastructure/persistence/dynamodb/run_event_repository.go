package dynamodb

import (
	"context"
	"fmt"
	"time"

	"coredetect/application/ports"
	"coredetect/domain/events"
	pkgerrors "coredetect/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const (
	entityRunEvent    = "RUN_EVENT"
	skRunEventPrefix  = "EVENT#"
	runEventRetention = 90 * 24 * time.Hour
)

// RunEventRepository implements ports.RunEventStore using DynamoDB.
// Events of a run share the partition RUN#<id> and sort by time.
type RunEventRepository struct {
	table
	logger *zap.Logger
}

// NewRunEventRepository creates a new RunEventRepository
func NewRunEventRepository(client Client, tableName string, metrics Metrics, logger *zap.Logger) *RunEventRepository {
	return &RunEventRepository{
		table:  table{client: client, name: tableName, metrics: metrics},
		logger: logger,
	}
}

var _ ports.RunEventStore = (*RunEventRepository)(nil)

type runEventItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	EventID    string `dynamodbav:"EventID"`
	RunID      string `dynamodbav:"RunID"`
	EventType  string `dynamodbav:"EventType"`
	Timestamp  string `dynamodbav:"Timestamp"`
	Data       string `dynamodbav:"Data"`
	TTL        int64  `dynamodbav:"TTL"`
}

func runPK(runID string) string {
	return "RUN#" + runID
}

// Append stores records. Records expire after the retention period.
func (r *RunEventRepository) Append(ctx context.Context, records []events.Record) error {
	if len(records) == 0 {
		return nil
	}

	items := make([]map[string]types.AttributeValue, 0, len(records))
	for _, rec := range records {
		av, err := attributevalue.MarshalMap(runEventItem{
			PK:         runPK(rec.RunID),
			SK:         fmt.Sprintf("%s%s#%s", skRunEventPrefix, sortableTime(rec.Timestamp), rec.EventID),
			EntityType: entityRunEvent,
			EventID:    rec.EventID,
			RunID:      rec.RunID,
			EventType:  rec.EventType,
			Timestamp:  formatTime(rec.Timestamp),
			Data:       string(rec.Data),
			TTL:        rec.Timestamp.Add(runEventRetention).Unix(),
		})
		if err != nil {
			return fmt.Errorf("failed to marshal run event: %w", err)
		}
		items = append(items, av)
	}
	return r.batchPut(ctx, "AppendRunEvents", items)
}

// List returns the events of a run, oldest first
func (r *RunEventRepository) List(ctx context.Context, runID string) ([]events.Record, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(runPK(runID))).
		And(expression.Key("SK").BeginsWith(skRunEventPrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to build run event query")
	}

	raw, err := r.queryAll(ctx, "ListRunEvents", &dynamodb.QueryInput{
		TableName:                 aws.String(r.name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, pkgerrors.NewNotFoundError("run").WithDetail("run_id", runID)
	}

	records := make([]events.Record, 0, len(raw))
	for _, av := range raw {
		var item runEventItem
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run event: %w", err)
		}
		records = append(records, events.Record{
			EventID:   item.EventID,
			RunID:     item.RunID,
			EventType: item.EventType,
			Timestamp: parseTime(item.Timestamp),
			Data:      []byte(item.Data),
		})
	}
	return records, nil
}
