package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"coredetect/application/ports"
	pkgerrors "coredetect/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// DistributedLock provides distributed locking using DynamoDB conditional writes.
// Detection runs use it so a seed is only processed by one worker at a time.
type DistributedLock struct {
	table
	logger *zap.Logger
	now    func() time.Time
}

// lockRecord represents a lock record in DynamoDB
type lockRecord struct {
	PK         string `dynamodbav:"PK"` // LOCK#<resource>
	SK         string `dynamodbav:"SK"` // LOCK
	EntityType string `dynamodbav:"EntityType"`
	LockID     string `dynamodbav:"LockID"`
	Owner      string `dynamodbav:"Owner"`
	AcquiredAt string `dynamodbav:"AcquiredAt"`
	ExpiresAt  int64  `dynamodbav:"ExpiresAt"`
	TTL        int64  `dynamodbav:"TTL"` // Unix timestamp for DynamoDB TTL
}

// NewDistributedLock creates a new distributed lock instance
func NewDistributedLock(client Client, tableName string, logger *zap.Logger) *DistributedLock {
	return &DistributedLock{
		table:  table{client: client, name: tableName},
		logger: logger,
		now:    time.Now,
	}
}

var _ ports.RunLock = (*DistributedLock)(nil)

// Acquire takes the lock for resource or returns a CONFLICT AppError when another
// owner holds an unexpired lock.
func (dl *DistributedLock) Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (func(context.Context) error, error) {
	now := dl.now()
	expiresAt := now.Add(ttl)
	lockID := owner + "_" + strconv.FormatInt(now.UnixNano(), 10)

	item, err := attributevalue.MarshalMap(lockRecord{
		PK:         "LOCK#" + resource,
		SK:         "LOCK",
		EntityType: "LOCK",
		LockID:     lockID,
		Owner:      owner,
		AcquiredAt: formatTime(now),
		ExpiresAt:  expiresAt.UnixMilli(),
		TTL:        expiresAt.Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock: %w", err)
	}

	_, err = dl.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(dl.name),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		},
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			dl.logger.Debug("Failed to acquire lock - already held",
				zap.String("resource", resource),
				zap.String("owner", owner),
			)
			return nil, pkgerrors.NewConflictError("lock already held").WithDetail("resource", resource)
		}
		return nil, pkgerrors.NewDatabaseError("AcquireLock", err)
	}

	dl.logger.Debug("Lock acquired successfully",
		zap.String("resource", resource),
		zap.String("lockID", lockID),
		zap.Duration("duration", ttl),
	)

	return func(ctx context.Context) error {
		return dl.release(ctx, resource, lockID)
	}, nil
}

func (dl *DistributedLock) release(ctx context.Context, resource, lockID string) error {
	_, err := dl.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(dl.name),
		Key:                 dl.key("LOCK#"+resource, "LOCK"),
		ConditionExpression: aws.String("LockID = :lockId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":lockId": &types.AttributeValueMemberS{Value: lockID},
		},
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			// Expired and taken over; nothing left to release
			dl.logger.Warn("Lock already released or owned by someone else",
				zap.String("resource", resource),
				zap.String("lockID", lockID),
			)
			return nil
		}
		return pkgerrors.NewDatabaseError("ReleaseLock", err)
	}

	dl.logger.Debug("Lock released successfully",
		zap.String("resource", resource),
		zap.String("lockID", lockID),
	)
	return nil
}
