package dynamo

import (
	"context"
	"fmt"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// UserRepo provides typed DynamoDB operations for the users table.
// Email uniqueness is enforced with a lock item per address
// (user_id = "email#<address>", owner_id = owning user) written in the same
// transaction as the user.
type UserRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewUserRepo(client *dynamodb.Client, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

func emailLockKey(email string) string { return "email#" + email }

// Create inserts u and claims its email. It fails with domain.ErrEmailTaken
// when another user already owns the address.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.Version == 0 {
		u.Version = 1
	}
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	lock := map[string]types.AttributeValue{
		fieldUserID:  &types.AttributeValueMemberS{Value: emailLockKey(u.Email)},
		fieldOwnerID: &types.AttributeValueMemberS{Value: u.UserID},
	}
	notExists := aws.String("attribute_not_exists(user_id)")
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(r.tableName), Item: item, ConditionExpression: notExists}},
			{Put: &types.Put{TableName: aws.String(r.tableName), Item: lock, ConditionExpression: notExists}},
		},
	})
	if isTransactionConditionFailed(err) {
		return fmt.Errorf("create user %s: %w", u.Email, domain.ErrEmailTaken)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

// GetByEmail resolves the email lock, then reads the owner. Both reads are
// strongly consistent, so a user created a moment ago is always visible.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, emailLockKey(email)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get email lock: %w", err)
	}
	owner, ok := out.Item[fieldOwnerID].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return r.Get(ctx, owner.Value)
}

// Update writes the mutable fields of u, guarded by optimistic locking on
// Version. A concurrent writer makes it fail with domain.ErrConflict.
func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	expected := u.Version
	ue, err := buildUpdateExpr(map[string]any{
		fieldPasswordHash:  u.PasswordHash,
		fieldPhone:         u.Phone,
		fieldRole:          u.Role,
		fieldEmailVerified: u.EmailVerified,
		fieldPhoneVerified: u.PhoneVerified,
		fieldIsGuest:       u.IsGuest,
		fieldStatus:        u.Status,
		fieldAuthProvider:  u.AuthProvider,
		fieldGoogleSub:     u.GoogleSub,
		fieldLastLoginAt:   u.LastLoginAt,
		fieldLastLogoutAt:  u.LastLogoutAt,
		fieldUpdatedAt:     u.UpdatedAt,
		fieldVersion:       expected + 1,
	})
	if err != nil {
		return err
	}
	ue = ue.with(
		map[string]string{"#ver": fieldVersion},
		map[string]types.AttributeValue{":expected": numValue(expected)},
	)
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, u.UserID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#ver = :expected"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("update user %s: %w", u.UserID, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	u.Version = expected + 1
	return nil
}
