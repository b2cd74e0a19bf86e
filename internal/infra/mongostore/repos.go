package mongostore

import (
	"context"
	"errors"
	"regexp"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type repos struct {
	db   *mongo.Database
	sess mongo.Session
}

func (r *repos) Orders() repo.OrderRepository                   { return orderRepo{r} }
func (r *repos) OrderItems() repo.OrderItemRepository           { return orderItemRepo{r} }
func (r *repos) PaymentAttempts() repo.PaymentAttemptRepository { return attemptRepo{r} }
func (r *repos) AuditLogs() repo.AuditLogRepository             { return auditLogRepo{r} }
func (r *repos) Products() repo.ProductRepository               { return productRepo{r} }

// トランザクション中はセッションを ctx に載せる。
func (r *repos) ctx(ctx context.Context) context.Context {
	if r.sess == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, r.sess)
}

func (r *repos) col(name string) *mongo.Collection {
	return r.db.Collection(name)
}

func mapMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repo.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return repo.ErrConflict
	}
	return err
}

// =====================
// orders
// =====================

type orderRepo struct{ r *repos }

func (o orderRepo) FindByReference(ctx context.Context, reference string) (model.Order, error) {
	var d orderDoc
	err := o.r.col(ordersCollection).FindOne(o.r.ctx(ctx), bson.M{"_id": reference}).Decode(&d)
	if err != nil {
		return model.Order{}, mapMongoError(err)
	}
	return d.toModel(), nil
}

func (o orderRepo) Create(ctx context.Context, order model.Order) error {
	_, err := o.r.col(ordersCollection).InsertOne(o.r.ctx(ctx), toOrderDoc(order))
	return mapMongoError(err)
}

func (o orderRepo) FindByCheckoutKey(ctx context.Context, key string) (model.Order, bool, error) {
	var d orderDoc
	err := o.r.col(ordersCollection).FindOne(o.r.ctx(ctx), bson.M{"checkout_key": key}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Order{}, false, nil
	}
	if err != nil {
		return model.Order{}, false, err
	}
	return d.toModel(), true, nil
}

func (o orderRepo) UpdateStatus(ctx context.Context, reference string, status model.OrderStatus, at time.Time) error {
	res, err := o.r.col(ordersCollection).UpdateOne(o.r.ctx(ctx),
		bson.M{"_id": reference},
		bson.M{"$set": bson.M{"status": status, "updated_at": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (o orderRepo) TransitionPaymentStatus(ctx context.Context, reference string, from, to model.PaymentStatus, at time.Time) (bool, error) {
	res, err := o.r.col(ordersCollection).UpdateOne(o.r.ctx(ctx),
		bson.M{"_id": reference, "payment.status": from},
		bson.M{"$set": bson.M{"payment.status": to, "updated_at": at}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (o orderRepo) AttachPayment(ctx context.Context, reference string, provider model.PaymentProvider, providerRef, merchantCode string, at time.Time) (bool, error) {
	res, err := o.r.col(ordersCollection).UpdateOne(o.r.ctx(ctx),
		bson.M{"_id": reference, "payment.status": model.PaymentStatusPending},
		bson.M{"$set": bson.M{
			"payment.provider":           provider,
			"payment.provider_reference": providerRef,
			"payment.merchant_code":      merchantCode,
			"updated_at":                 at,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (o orderRepo) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.PaymentStatus != "" {
		filter["payment.status"] = f.PaymentStatus
	}
	if f.From != nil || f.To != nil {
		created := bson.M{}
		if f.From != nil {
			created["$gte"] = *f.From
		}
		if f.To != nil {
			created["$lte"] = *f.To
		}
		filter["created_at"] = created
	}

	c := o.r.ctx(ctx)
	col := o.r.col(ordersCollection)

	total, err := col.CountDocuments(c, filter)
	if err != nil {
		return []model.Order{}, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((f.Page - 1) * f.Limit)).
		SetLimit(int64(f.Limit))

	cur, err := col.Find(c, filter, opts)
	if err != nil {
		return []model.Order{}, 0, err
	}
	var docs []orderDoc
	if err := cur.All(c, &docs); err != nil {
		return []model.Order{}, 0, err
	}

	out := make([]model.Order, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, total, nil
}

// =====================
// order items
// =====================

type orderItemRepo struct{ r *repos }

func (o orderItemRepo) CreateBulk(ctx context.Context, orderReference string, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(items))
	for i, it := range items {
		docs = append(docs, orderItemDoc{
			OrderReference: orderReference,
			Position:       int64(i + 1),
			ProductID:      it.ProductID,
			Name:           it.ProductNameSnapshot,
			UnitPrice:      it.UnitPriceSnapshot.String(),
			Quantity:       it.Quantity,
			CreatedAt:      it.CreatedAt,
		})
	}
	_, err := o.r.col(orderItemsCollection).InsertMany(o.r.ctx(ctx), docs)
	return mapMongoError(err)
}

func (o orderItemRepo) ListByOrderReference(ctx context.Context, orderReference string) ([]model.OrderItem, error) {
	c := o.r.ctx(ctx)
	cur, err := o.r.col(orderItemsCollection).Find(c,
		bson.M{"order_reference": orderReference},
		options.Find().SetSort(bson.D{{Key: "position", Value: 1}}),
	)
	if err != nil {
		return []model.OrderItem{}, err
	}
	var docs []orderItemDoc
	if err := cur.All(c, &docs); err != nil {
		return []model.OrderItem{}, err
	}
	out := make([]model.OrderItem, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

// =====================
// payment attempts
// =====================

type attemptRepo struct{ r *repos }

func (a attemptRepo) Create(ctx context.Context, attempt model.PaymentAttempt) error {
	_, err := a.r.col(attemptsCollection).InsertOne(a.r.ctx(ctx), toAttemptDoc(attempt))
	return mapMongoError(err)
}

func (a attemptRepo) FindByReference(ctx context.Context, reference string) (model.PaymentAttempt, error) {
	var d attemptDoc
	err := a.r.col(attemptsCollection).FindOne(a.r.ctx(ctx), bson.M{"_id": reference}).Decode(&d)
	if err != nil {
		return model.PaymentAttempt{}, mapMongoError(err)
	}
	return d.toModel(), nil
}

func (a attemptRepo) FindByIdempotencyKey(ctx context.Context, provider model.PaymentProvider, key string) (model.PaymentAttempt, bool, error) {
	var d attemptDoc
	err := a.r.col(attemptsCollection).FindOne(a.r.ctx(ctx), bson.M{"provider": provider, "idempotency_key": key}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.PaymentAttempt{}, false, nil
	}
	if err != nil {
		return model.PaymentAttempt{}, false, err
	}
	return d.toModel(), true, nil
}

func (a attemptRepo) TransitionStatus(ctx context.Context, reference string, from, to model.AttemptStatus, at time.Time) (bool, error) {
	res, err := a.r.col(attemptsCollection).UpdateOne(a.r.ctx(ctx),
		bson.M{"_id": reference, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": at}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// =====================
// audit logs
// =====================

type auditLogRepo struct{ r *repos }

func (l auditLogRepo) Create(ctx context.Context, log model.AuditLog) error {
	_, err := l.r.col(auditLogsCollection).InsertOne(l.r.ctx(ctx), auditLogDoc{
		Actor:        log.Actor,
		Action:       log.Action,
		ResourceType: log.ResourceType,
		ResourceID:   log.ResourceID,
		BeforeJSON:   log.BeforeJSON,
		AfterJSON:    log.AfterJSON,
		CreatedAt:    log.CreatedAt,
	})
	return err
}

// ID は ObjectID 側にあるので model.AuditLog.ID は 0 のまま返す。
func (l auditLogRepo) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	limit, offset := f.Page()

	filter := bson.M{}
	if prefix, ok := f.ActorPrefix(); ok {
		filter["actor"] = bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}
	} else if f.Actor != "" {
		filter["actor"] = f.Actor
	}
	if f.Action != nil {
		filter["action"] = *f.Action
	}
	if f.ResourceType != nil {
		filter["resource_type"] = *f.ResourceType
	}
	if f.ResourceID != "" {
		filter["resource_id"] = f.ResourceID
	}
	if f.CreatedFrom != nil || f.CreatedTo != nil {
		created := bson.M{}
		if f.CreatedFrom != nil {
			created["$gte"] = *f.CreatedFrom
		}
		if f.CreatedTo != nil {
			created["$lte"] = *f.CreatedTo
		}
		filter["created_at"] = created
	}

	c := l.r.ctx(ctx)
	cur, err := l.r.col(auditLogsCollection).Find(c, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit)),
	)
	if err != nil {
		return []model.AuditLog{}, err
	}
	var docs []auditLogDoc
	if err := cur.All(c, &docs); err != nil {
		return []model.AuditLog{}, err
	}
	out := make([]model.AuditLog, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.AuditLog{
			Actor:        d.Actor,
			Action:       d.Action,
			ResourceType: d.ResourceType,
			ResourceID:   d.ResourceID,
			BeforeJSON:   d.BeforeJSON,
			AfterJSON:    d.AfterJSON,
			CreatedAt:    d.CreatedAt,
		})
	}
	return out, nil
}

// =====================
// products
// =====================

type productRepo struct{ r *repos }

func (p productRepo) FindByID(ctx context.Context, id string) (model.Product, error) {
	var d productDoc
	err := p.r.col(productsCollection).FindOne(p.r.ctx(ctx), bson.M{"_id": id}).Decode(&d)
	if err != nil {
		return model.Product{}, mapMongoError(err)
	}
	return model.Product{
		ID:        d.ID,
		Name:      d.Name,
		Price:     parseAmount(d.Price),
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

func (p productRepo) Upsert(ctx context.Context, prod model.Product) error {
	now := time.Now()
	_, err := p.r.col(productsCollection).UpdateOne(p.r.ctx(ctx),
		bson.M{"_id": prod.ID},
		bson.M{
			"$set": bson.M{
				"name":       prod.Name,
				"price":      prod.Price.String(),
				"is_active":  prod.IsActive,
				"updated_at": now,
			},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	return err
}
