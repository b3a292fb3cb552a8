package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// AuditLogRepo is append-only apart from retention cleanup.
// PK: log_id.
type AuditLogRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAuditLogRepo(client *dynamodb.Client, tableName string) *AuditLogRepo {
	return &AuditLogRepo{client: client, tableName: tableName}
}

// Append writes e. Entries are never overwritten.
func (r *AuditLogRepo) Append(ctx context.Context, e *domain.AuditLogEntry) error {
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(log_id)"),
	})
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListBefore returns up to limit entries created before cutoff.
func (r *AuditLogRepo) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.AuditLogEntry, error) {
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          aws.String("#c < :cutoff"),
		ExpressionAttributeNames:  map[string]string{"#c": fieldCreatedAt},
		ExpressionAttributeValues: map[string]types.AttributeValue{":cutoff": numValue(cutoff.Unix())},
	})
	var entries []domain.AuditLogEntry
	for p.HasMorePages() && len(entries) < limit {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		var batch []domain.AuditLogEntry
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal audit entries: %w", err)
		}
		entries = append(entries, batch...)
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *AuditLogRepo) Delete(ctx context.Context, logIDs []string) (int, error) {
	return batchDelete(ctx, r.client, r.tableName, fieldLogID, logIDs)
}
