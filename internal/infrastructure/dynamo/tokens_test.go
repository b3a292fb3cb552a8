package dynamo

import (
	"testing"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newToken(id string) *domain.VerificationToken {
	return &domain.VerificationToken{
		TokenID:   id,
		UserID:    "u1",
		Purpose:   domain.PurposeEmailVerification,
		Secret:    "s-" + id,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestReplaceItems_FirstTokenClaimsSlot(t *testing.T) {
	items, err := replaceItems("tokens", newToken("t1"), "", false)
	require.NoError(t, err)
	require.Len(t, items, 2)

	slot := items[0].Put
	require.NotNil(t, slot)
	assert.Equal(t, "attribute_not_exists(token_id)", aws.ToString(slot.ConditionExpression))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "slot#u1#email_verification"}, slot.Item[fieldTokenID])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "t1"}, slot.Item[fieldActiveID])
	assert.NotContains(t, slot.Item, fieldExpiresAt)

	tok := items[1].Put
	require.NotNil(t, tok)
	assert.Equal(t, "attribute_not_exists(token_id)", aws.ToString(tok.ConditionExpression))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "email_verification#s-t1"}, tok.Item[fieldLookupKey])
}

func TestReplaceItems_SwapsSlotAndDeletesPrevious(t *testing.T) {
	items, err := replaceItems("tokens", newToken("t2"), "t1", true)
	require.NoError(t, err)
	require.Len(t, items, 3)

	slot := items[0].Put
	assert.Equal(t, "#active = :prev", aws.ToString(slot.ConditionExpression))
	assert.Equal(t, fieldActiveID, slot.ExpressionAttributeNames["#active"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "t1"}, slot.ExpressionAttributeValues[":prev"])

	del := items[2].Delete
	require.NotNil(t, del)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "t1"}, del.Key[fieldTokenID])
	assert.Equal(t, "attribute_not_exists(used_at)", aws.ToString(del.ConditionExpression))
}

func TestReplaceItems_KeepsUsedPrevious(t *testing.T) {
	items, err := replaceItems("tokens", newToken("t2"), "t1", false)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "#active = :prev", aws.ToString(items[0].Put.ConditionExpression))
}
