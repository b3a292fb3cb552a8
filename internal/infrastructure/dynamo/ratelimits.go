package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sethvargo/go-retry"
)

// Acquire retries when a concurrent writer changes the counter between the
// conditional increment and the fresh-window put.
const (
	acquireRetries = 2
	acquireBackoff = 15 * time.Millisecond
)

// errLostRace marks a conditional write that lost to a concurrent writer
// and has to start over.
var errLostRace = errors.New("item changed concurrently")

// RateLimitRepo keeps send counters, one item per (subject, purpose).
// PK: id. reset_at is the TTL attribute.
type RateLimitRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewRateLimitRepo(client *dynamodb.Client, tableName string) *RateLimitRepo {
	return &RateLimitRepo{client: client, tableName: tableName}
}

var rateLimitNames = map[string]string{
	"#pk":    fieldID,
	"#att":   fieldAttempts,
	"#reset": fieldResetAt,
	"#last":  fieldLastAttemptAt,
}

// Acquire records one attempt if the window has room. Every path is a single
// conditional write, so two concurrent callers can never both take the last slot.
func (r *RateLimitRepo) Acquire(ctx context.Context, subjectKey string, purpose domain.Purpose, max int, window time.Duration, now time.Time) (domain.RateLimitDecision, error) {
	key := domain.RateLimitKey(subjectKey, purpose)
	var decision domain.RateLimitDecision
	backoff := retry.WithMaxRetries(acquireRetries, retry.NewConstant(acquireBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		d, err := r.tryAcquire(ctx, key, subjectKey, purpose, max, window, now)
		if errors.Is(err, errLostRace) {
			return retry.RetryableError(err)
		}
		decision = d
		return err
	})
	if errors.Is(err, errLostRace) {
		return domain.RateLimitDecision{}, fmt.Errorf("rate limit %s: %w", key, domain.ErrConflict)
	}
	return decision, err
}

func (r *RateLimitRepo) tryAcquire(ctx context.Context, key, subjectKey string, purpose domain.Purpose, max int, window time.Duration, now time.Time) (domain.RateLimitDecision, error) {
	c, err := r.increment(ctx, key, max, now)
	if err == nil {
		return domain.RateLimitDecision{Allowed: true, Attempts: c.Attempts, ResetIn: c.ResetIn(now)}, nil
	}
	if !isConditionFailed(err) {
		return domain.RateLimitDecision{}, fmt.Errorf("increment rate limit: %w", err)
	}

	cur, err := r.Get(ctx, subjectKey, purpose)
	switch {
	case err == nil && !cur.IsExpired(now):
		if cur.Attempts >= max {
			return domain.RateLimitDecision{Allowed: false, Attempts: cur.Attempts, ResetIn: cur.ResetIn(now)}, nil
		}
		return domain.RateLimitDecision{}, errLostRace
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return domain.RateLimitDecision{}, err
	}

	fresh := &domain.RateLimitCounter{
		ID:            key,
		SubjectKey:    subjectKey,
		Purpose:       purpose,
		Attempts:      1,
		LastAttemptAt: now,
		ResetAt:       now.Add(window),
	}
	err = r.startWindow(ctx, fresh, now)
	if isConditionFailed(err) {
		return domain.RateLimitDecision{}, errLostRace
	}
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("start rate limit window: %w", err)
	}
	return domain.RateLimitDecision{Allowed: true, Attempts: 1, ResetIn: fresh.ResetIn(now)}, nil
}

func (r *RateLimitRepo) increment(ctx context.Context, key string, max int, now time.Time) (*domain.RateLimitCounter, error) {
	last, err := attributevalue.Marshal(now)
	if err != nil {
		return nil, err
	}
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey(fieldID, key),
		UpdateExpression:         aws.String("SET #last = :last ADD #att :one"),
		ConditionExpression:      aws.String("attribute_exists(#pk) AND #att < :max AND #reset > :now"),
		ExpressionAttributeNames: rateLimitNames,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":last": last,
			":one":  numValue(1),
			":max":  numValue(int64(max)),
			":now":  numValue(now.Unix()),
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, err
	}
	var c domain.RateLimitCounter
	if err := attributevalue.UnmarshalMap(out.Attributes, &c); err != nil {
		return nil, fmt.Errorf("unmarshal rate limit: %w", err)
	}
	return &c, nil
}

func (r *RateLimitRepo) startWindow(ctx context.Context, c *domain.RateLimitCounter, now time.Time) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal rate limit: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      item,
		ConditionExpression:       aws.String("attribute_not_exists(#pk) OR #reset <= :now"),
		ExpressionAttributeNames:  map[string]string{"#pk": fieldID, "#reset": fieldResetAt},
		ExpressionAttributeValues: map[string]types.AttributeValue{":now": numValue(now.Unix())},
	})
	return err
}

// Release gives back one attempt taken by Acquire in the current window.
// It is a no-op once the window has rolled over or the count is zero.
func (r *RateLimitRepo) Release(ctx context.Context, subjectKey string, purpose domain.Purpose, now time.Time) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey(fieldID, domain.RateLimitKey(subjectKey, purpose)),
		UpdateExpression:         aws.String("ADD #att :minus"),
		ConditionExpression:      aws.String("#att > :zero AND #reset > :now"),
		ExpressionAttributeNames: map[string]string{"#att": fieldAttempts, "#reset": fieldResetAt},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":minus": numValue(-1),
			":zero":  numValue(0),
			":now":   numValue(now.Unix()),
		},
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("release rate limit: %w", err)
	}
	return nil
}

func (r *RateLimitRepo) Get(ctx context.Context, subjectKey string, purpose domain.Purpose) (*domain.RateLimitCounter, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldID, domain.RateLimitKey(subjectKey, purpose)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get rate limit: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("rate limit not found: %w", domain.ErrNotFound)
	}
	var c domain.RateLimitCounter
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal rate limit: %w", err)
	}
	return &c, nil
}

// DeleteExpired removes counters whose window closed before now.
func (r *RateLimitRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		ProjectionExpression:      aws.String("#pk"),
		FilterExpression:          aws.String("#reset <= :now"),
		ExpressionAttributeNames:  map[string]string{"#pk": fieldID, "#reset": fieldResetAt},
		ExpressionAttributeValues: map[string]types.AttributeValue{":now": numValue(now.Unix())},
	})
	var ids []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("scan expired rate limits: %w", err)
		}
		for _, item := range page.Items {
			if v, ok := item[fieldID].(*types.AttributeValueMemberS); ok {
				ids = append(ids, v.Value)
			}
		}
	}
	return batchDelete(ctx, r.client, r.tableName, fieldID, ids)
}
