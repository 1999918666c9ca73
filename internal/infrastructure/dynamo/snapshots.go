package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-bank-sync/internal/domain"
)

// itemAPI is the subset of *dynamodb.Client the snapshot repo uses.
type itemAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// SnapshotRepo stores the authority snapshot as a single item.
// PK: snapshot_id. Items are capped at 400KB, which bounds the registry size
// this backend can hold; use the S3 backend beyond that.
type SnapshotRepo struct {
	client    itemAPI
	tableName string
	key       string
}

func NewSnapshotRepo(client itemAPI, tableName, key string) *SnapshotRepo {
	return &SnapshotRepo{client: client, tableName: tableName, key: key}
}

func (r *SnapshotRepo) Save(ctx context.Context, snap *domain.Snapshot) error {
	snap.SnapshotID = r.key
	item, err := attributevalue.MarshalMap(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *SnapshotRepo) Load(ctx context.Context) (*domain.Snapshot, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(attrSnapshotID, r.key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("snapshot %s not found: %w", r.key, domain.ErrNotFound)
	}
	var snap domain.Snapshot
	if err := attributevalue.UnmarshalMap(out.Item, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
