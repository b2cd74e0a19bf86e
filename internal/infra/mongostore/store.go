// Package mongostore は注文ストアを MongoDB のドキュメントとして持つ実装。
// 条件付き更新は UpdateOne のフィルタに現在ステータスを入れて行う。
package mongostore

import (
	"context"

	repo "storefront/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ordersCollection     = "orders"
	orderItemsCollection = "order_items"
	attemptsCollection   = "payment_attempts"
	auditLogsCollection  = "audit_logs"
	productsCollection   = "products"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

func New(client *mongo.Client, dbName string) *Store {
	return &Store{client: client, db: client.Database(dbName)}
}

// EnsureIndexes は一意制約（checkout_key / プロバイダ＋idempotency_key）と検索用indexを作る。
func (s *Store) EnsureIndexes(ctx context.Context) error {
	partialKey := func(field string) *options.IndexOptions {
		return options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{field: bson.M{"$exists": true}})
	}

	if _, err := s.db.Collection(ordersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "checkout_key", Value: 1}}, Options: partialKey("checkout_key").SetName("unique_checkout_key")},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "payment.status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}); err != nil {
		return err
	}

	if _, err := s.db.Collection(orderItemsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "order_reference", Value: 1}, {Key: "position", Value: 1}},
	}); err != nil {
		return err
	}

	if _, err := s.db.Collection(attemptsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "idempotency_key", Value: 1}},
			Options: partialKey("idempotency_key").SetName("unique_provider_idempotency_key"),
		},
		{Keys: bson.D{{Key: "order_reference", Value: 1}}},
	}); err != nil {
		return err
	}

	_, err := s.db.Collection(auditLogsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "resource_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	return err
}

// WithinTx はセッションのトランザクションで fn を実行する（レプリカセット前提）。
func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(s.repos(sess))
	})
	return err
}

// Repos はトランザクション外で使うrepo群。
func (s *Store) Repos() repo.TxRepos {
	return s.repos(nil)
}

func (s *Store) repos(sess mongo.Session) *repos {
	return &repos{db: s.db, sess: sess}
}

var _ repo.TransactionManager = (*Store)(nil)
