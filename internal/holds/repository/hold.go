package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	holdserrors "plotbook/internal/holds/errors"
	"plotbook/pkg/config"
	mongotx "plotbook/pkg/db/mongo"
	"plotbook/pkg/model"
)

const (
	CollectionName = "Holds"
)

type mongoHoldRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type HoldRepository interface {
	Create(ctx context.Context, hold *model.Hold) error
	FindByID(ctx context.Context, id string) (*model.Hold, error)
	FindActiveByPlot(ctx context.Context, plotID string) (*model.Hold, error)
	FindActiveByProject(ctx context.Context, projectID string, limit int, offset int64) ([]*model.Hold, error)
	CountActiveByProject(ctx context.Context, projectID string) (int64, error)
	FindExpired(ctx context.Context, now time.Time, limit int) ([]*model.Hold, error)
	UpdateStatus(ctx context.Context, id string, from, to model.HoldStatus) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoHoldRepository(cfg *config.Config) HoldRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoHoldRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoHoldRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

// Create inserts a hold. The partial unique index on plot_id (active holds
// only) turns a second concurrent insert into a duplicate key error.
func (r *mongoHoldRepository) Create(ctx context.Context, hold *model.Hold) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	hold.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, hold)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: plot %s", holdserrors.ErrDuplicateActiveHold, hold.PlotID)
		}
		return fmt.Errorf("failed to create hold: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		hold.ID = oid.Hex()
	}
	return nil
}

func (r *mongoHoldRepository) FindByID(ctx context.Context, id string) (*model.Hold, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", holdserrors.ErrInvalidID, id)
	}

	var hold model.Hold
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&hold)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, holdserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find hold: %w", err)
	}

	return &hold, nil
}

func (r *mongoHoldRepository) FindActiveByPlot(ctx context.Context, plotID string) (*model.Hold, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"plot_id": plotID,
		"status":  model.HoldActive,
	}

	var hold model.Hold
	err := r.collection.FindOne(ctx, filter).Decode(&hold)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, holdserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find active hold: %w", err)
	}

	return &hold, nil
}

func (r *mongoHoldRepository) FindActiveByProject(ctx context.Context, projectID string, limit int, offset int64) ([]*model.Hold, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"project_id": projectID,
		"status":     model.HoldActive,
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "expires_at", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find active holds: %w", err)
	}
	defer cursor.Close(ctx)

	var holds []*model.Hold
	if err = cursor.All(ctx, &holds); err != nil {
		return nil, fmt.Errorf("failed to decode holds: %w", err)
	}

	return holds, nil
}

func (r *mongoHoldRepository) CountActiveByProject(ctx context.Context, projectID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{
		"project_id": projectID,
		"status":     model.HoldActive,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count active holds: %w", err)
	}
	return count, nil
}

// FindExpired returns active holds whose expiry has passed, oldest first.
func (r *mongoHoldRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*model.Hold, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"status":     model.HoldActive,
		"expires_at": bson.M{"$lte": now},
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "expires_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired holds: %w", err)
	}
	defer cursor.Close(ctx)

	var holds []*model.Hold
	if err = cursor.All(ctx, &holds); err != nil {
		return nil, fmt.Errorf("failed to decode expired holds: %w", err)
	}

	return holds, nil
}

// UpdateStatus is a conditional transition: nothing matches when the stored
// status is not `from`, which means another writer got there first.
func (r *mongoHoldRepository) UpdateStatus(ctx context.Context, id string, from, to model.HoldStatus) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", holdserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":    objectID,
		"status": from,
	}
	update := bson.M{
		"$set": bson.M{"status": to},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update hold status: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: expected %s", holdserrors.ErrStatusConflict, from)
	}

	return nil
}

func (r *mongoHoldRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
