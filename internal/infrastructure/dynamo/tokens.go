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

// tokenItem adds the GSI key attribute to a stored token.
type tokenItem struct {
	domain.VerificationToken
	LookupKey string `dynamodbav:"lookup_key"`
}

func lookupKey(purpose domain.Purpose, secret string) string { return string(purpose) + "#" + secret }

func ownerKey(userID string, purpose domain.Purpose) string { return userID + "#" + string(purpose) }

// slotKey is the token_id of the item naming the active token of (user, purpose).
func slotKey(userID string, purpose domain.Purpose) string { return "slot#" + ownerKey(userID, purpose) }

// Replace retries when a concurrent issuer swaps the slot first.
const (
	replaceRetries = 3
	replaceBackoff = 10 * time.Millisecond
)

// TokenRepo stores single-use verification tokens.
// PK: token_id. GSI: lookup_key-index (purpose#secret).
// Slot items (token_id "slot#user#purpose") carry only active_token_id and
// neither the GSI nor the TTL attribute.
type TokenRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewTokenRepo(client *dynamodb.Client, tableName string) *TokenRepo {
	return &TokenRepo{client: client, tableName: tableName}
}

// Replace stores t as the only unused token of (t.UserID, t.Purpose).
// A slot item per (user, purpose) names the active token; swapping the slot,
// putting t and deleting the previous unused token commit in one transaction,
// so concurrent issuers serialize on the slot and the loser retries.
func (r *TokenRepo) Replace(ctx context.Context, t *domain.VerificationToken) error {
	backoff := retry.WithMaxRetries(replaceRetries, retry.NewConstant(replaceBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := r.tryReplace(ctx, t)
		if errors.Is(err, errLostRace) {
			return retry.RetryableError(err)
		}
		return err
	})
	if errors.Is(err, errLostRace) {
		return fmt.Errorf("replace token of %s: %w", ownerKey(t.UserID, t.Purpose), domain.ErrConflict)
	}
	return err
}

func (r *TokenRepo) tryReplace(ctx context.Context, t *domain.VerificationToken) error {
	slot := slotKey(t.UserID, t.Purpose)
	prev, err := r.activeTokenID(ctx, slot)
	if err != nil {
		return err
	}
	// A used or already-removed previous token stays as it is.
	deletePrev := false
	if prev != "" {
		old, err := r.Get(ctx, prev)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return err
		default:
			deletePrev = !old.IsUsed()
		}
	}
	items, err := replaceItems(r.tableName, t, prev, deletePrev)
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if isTransactionConditionFailed(err) {
		return errLostRace
	}
	if err != nil {
		return fmt.Errorf("replace token: %w", err)
	}
	return nil
}

// activeTokenID reads the slot of a (user, purpose); "" when none exists yet.
func (r *TokenRepo) activeTokenID(ctx context.Context, slot string) (string, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldTokenID, slot),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get token slot: %w", err)
	}
	if v, ok := out.Item[fieldActiveID].(*types.AttributeValueMemberS); ok {
		return v.Value, nil
	}
	return "", nil
}

// replaceItems builds the slot swap, the put of t and, when deletePrev is
// set, the conditional delete of prev. The slot swap only succeeds if the
// slot still names prev.
func replaceItems(table string, t *domain.VerificationToken, prev string, deletePrev bool) ([]types.TransactWriteItem, error) {
	item, err := attributevalue.MarshalMap(tokenItem{
		VerificationToken: *t,
		LookupKey:         lookupKey(t.Purpose, t.Secret),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal token: %w", err)
	}
	slotPut := &types.Put{
		TableName: aws.String(table),
		Item: map[string]types.AttributeValue{
			fieldTokenID:  &types.AttributeValueMemberS{Value: slotKey(t.UserID, t.Purpose)},
			fieldActiveID: &types.AttributeValueMemberS{Value: t.TokenID},
		},
	}
	if prev == "" {
		slotPut.ConditionExpression = aws.String("attribute_not_exists(" + fieldTokenID + ")")
	} else {
		slotPut.ConditionExpression = aws.String("#active = :prev")
		slotPut.ExpressionAttributeNames = map[string]string{"#active": fieldActiveID}
		slotPut.ExpressionAttributeValues = map[string]types.AttributeValue{
			":prev": &types.AttributeValueMemberS{Value: prev},
		}
	}
	items := []types.TransactWriteItem{
		{Put: slotPut},
		{Put: &types.Put{
			TableName:           aws.String(table),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(" + fieldTokenID + ")"),
		}},
	}
	if deletePrev {
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName:           aws.String(table),
			Key:                 strKey(fieldTokenID, prev),
			ConditionExpression: aws.String("attribute_not_exists(" + fieldUsedAt + ")"),
		}})
	}
	return items, nil
}

func (r *TokenRepo) Get(ctx context.Context, tokenID string) (*domain.VerificationToken, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldTokenID, tokenID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("token not found: %w", domain.ErrNotFound)
	}
	var it tokenItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	return &it.VerificationToken, nil
}

// FindBySecret returns every token with this purpose and secret. Numeric
// phone codes may collide across users, so callers filter by owner.
func (r *TokenRepo) FindBySecret(ctx context.Context, purpose domain.Purpose, secret string) ([]domain.VerificationToken, error) {
	return r.queryIndex(ctx, indexTokenLookup, fieldLookupKey, lookupKey(purpose, secret))
}

// MarkUsed sets used_at only if the token exists, is unused and has not
// expired at now. Losing the race yields domain.ErrConflict.
func (r *TokenRepo) MarkUsed(ctx context.Context, tokenID string, now time.Time) error {
	ue, err := buildUpdateExpr(map[string]any{fieldUsedAt: now})
	if err != nil {
		return err
	}
	ue = ue.with(
		map[string]string{"#pk": fieldTokenID, "#used": fieldUsedAt, "#exp": fieldExpiresAt},
		map[string]types.AttributeValue{":now": numValue(now.Unix())},
	)
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldTokenID, tokenID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk) AND attribute_not_exists(#used) AND #exp >= :now"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("mark token %s used: %w", tokenID, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("mark token used: %w", err)
	}
	return nil
}

// DeleteExpired scans for tokens whose expiry is before now and deletes them.
// DynamoDB TTL eventually does the same; this keeps the table tidy on a schedule.
func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		ProjectionExpression:      aws.String("#pk"),
		FilterExpression:          aws.String("#exp < :now"),
		ExpressionAttributeNames:  map[string]string{"#pk": fieldTokenID, "#exp": fieldExpiresAt},
		ExpressionAttributeValues: map[string]types.AttributeValue{":now": numValue(now.Unix())},
	})
	var ids []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("scan expired tokens: %w", err)
		}
		for _, item := range page.Items {
			if v, ok := item[fieldTokenID].(*types.AttributeValueMemberS); ok {
				ids = append(ids, v.Value)
			}
		}
	}
	return batchDelete(ctx, r.client, r.tableName, fieldTokenID, ids)
}

func (r *TokenRepo) queryIndex(ctx context.Context, index, attr, value string) ([]domain.VerificationToken, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", index, err)
	}
	var items []tokenItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("unmarshal tokens: %w", err)
	}
	tokens := make([]domain.VerificationToken, len(items))
	for i := range items {
		tokens[i] = items[i].VerificationToken
	}
	return tokens, nil
}
