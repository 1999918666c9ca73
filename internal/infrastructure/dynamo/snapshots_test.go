package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-bank-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeItems keeps PutItem payloads in memory keyed by snapshot_id.
type fakeItems struct {
	items  map[string]map[string]types.AttributeValue
	getErr error
}

func (f *fakeItems) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	id := in.Key[attrSnapshotID].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[id]}, nil
}

func (f *fakeItems) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	id := in.Item[attrSnapshotID].(*types.AttributeValueMemberS).Value
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestStrKey(t *testing.T) {
	k := strKey("snapshot_id", "authority")
	v, ok := k["snapshot_id"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "authority", v.Value)
}

func TestSnapshotRepo_LoadMissing(t *testing.T) {
	repo := NewSnapshotRepo(&fakeItems{items: map[string]map[string]types.AttributeValue{}}, "snaps", "authority")
	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSnapshotRepo_LoadError(t *testing.T) {
	repo := NewSnapshotRepo(&fakeItems{getErr: errors.New("throttled")}, "snaps", "authority")
	_, err := repo.Load(context.Background())
	assert.ErrorContains(t, err, "throttled")
}

func TestSnapshotRepo_SaveThenLoad(t *testing.T) {
	repo := NewSnapshotRepo(&fakeItems{items: map[string]map[string]types.AttributeValue{}}, "snaps", "authority")
	saved := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	snap := &domain.Snapshot{
		Profiles: map[string]domain.Profile{
			"a@bank.test": {Email: "a@bank.test", Balance: 12.5, Transactions: []domain.Transaction{{ID: "tx_1", Status: domain.TxStatusCompleted}}},
		},
		UserPolicies: map[string]domain.UserPolicy{"U1": {TransfersEnabled: true, SuccessRate: 40}},
		GlobalPolicy: &domain.GlobalPolicy{TransfersEnabled: true, SuccessRate: 90, DailyLimit: 100},
		Registry:     []domain.RegistryUser{{ID: "U1", Email: "a@bank.test", Status: domain.StatusActive}},
		SavedAt:      saved,
	}
	require.NoError(t, repo.Save(context.Background(), snap))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "authority", got.SnapshotID)
	assert.Equal(t, 12.5, got.Profiles["a@bank.test"].Balance)
	assert.Equal(t, "tx_1", got.Profiles["a@bank.test"].Transactions[0].ID)
	assert.Equal(t, 40, got.UserPolicies["U1"].SuccessRate)
	require.NotNil(t, got.GlobalPolicy)
	assert.Equal(t, 90, got.GlobalPolicy.SuccessRate)
	assert.True(t, saved.Equal(got.SavedAt))
	assert.Len(t, got.Registry, 1)
}
