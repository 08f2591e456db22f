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

	plotserrors "plotbook/internal/plots/errors"
	"plotbook/pkg/config"
	mongotx "plotbook/pkg/db/mongo"
	"plotbook/pkg/model"
)

const (
	CollectionName = "Plots"
)

type mongoPlotRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type PlotRepository interface {
	Create(ctx context.Context, plot *model.Plot) error
	FindByID(ctx context.Context, id string) (*model.Plot, error)
	FindByProject(ctx context.Context, projectID string, filter *model.PlotFilter, limit int, offset int64) ([]*model.Plot, error)
	CountByProject(ctx context.Context, projectID string, filter *model.PlotFilter) (int64, error)
	SetAllocationStatus(ctx context.Context, id string, from, to model.AllocationStatus) error
	SetArchived(ctx context.Context, id string, archived bool) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoPlotRepository(cfg *config.Config) PlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPlotRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// When inside a transaction (SessionContext), returns the original context unchanged
// with a no-op cancel function, as we cannot wrap SessionContext without breaking
// transaction semantics.
func (r *mongoPlotRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoPlotRepository) Create(ctx context.Context, plot *model.Plot) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	plot.CreatedAt = now
	plot.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, plot)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", plotserrors.ErrDuplicatePlotNumber, plot.PlotNumber)
		}
		return fmt.Errorf("failed to create plot: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		plot.ID = oid.Hex()
	}
	return nil
}

func (r *mongoPlotRepository) FindByID(ctx context.Context, id string) (*model.Plot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", plotserrors.ErrInvalidID, id)
	}

	var plot model.Plot
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&plot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, plotserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find plot: %w", err)
	}

	return &plot, nil
}

func (r *mongoPlotRepository) FindByProject(ctx context.Context, projectID string, filter *model.PlotFilter, limit int, offset int64) ([]*model.Plot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "plot_number", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, r.buildFilter(projectID, filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find plots: %w", err)
	}
	defer cursor.Close(ctx)

	var plots []*model.Plot
	if err = cursor.All(ctx, &plots); err != nil {
		return nil, fmt.Errorf("failed to decode plots: %w", err)
	}

	return plots, nil
}

func (r *mongoPlotRepository) CountByProject(ctx context.Context, projectID string, filter *model.PlotFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, r.buildFilter(projectID, filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count plots: %w", err)
	}
	return count, nil
}

func (r *mongoPlotRepository) buildFilter(projectID string, f *model.PlotFilter) bson.M {
	filter := bson.M{"project_id": projectID}

	if f == nil {
		return filter
	}
	if f.Status != "" {
		filter["allocation_status"] = f.Status
	}
	if f.Facing != "" {
		filter["facing"] = f.Facing
	}
	if f.MinPrice > 0 || f.MaxPrice > 0 {
		price := bson.M{}
		if f.MinPrice > 0 {
			price["$gte"] = f.MinPrice
		}
		if f.MaxPrice > 0 {
			price["$lte"] = f.MaxPrice
		}
		filter["price"] = price
	}

	return filter
}

// SetAllocationStatus is the sole write path for a plot's allocation status.
// The conditional filter makes it a compare-and-set: when the stored status
// is not `from`, nothing matches and the caller lost the race.
func (r *mongoPlotRepository) SetAllocationStatus(ctx context.Context, id string, from, to model.AllocationStatus) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", plotserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":               objectID,
		"allocation_status": from,
	}
	update := bson.M{
		"$set": bson.M{
			"allocation_status": to,
			"updated_at":        time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update plot status: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: expected %s", plotserrors.ErrStatusConflict, from)
	}

	return nil
}

func (r *mongoPlotRepository) SetArchived(ctx context.Context, id string, archived bool) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", plotserrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"archived":   archived,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update plot archive flag: %w", err)
	}

	if result.MatchedCount == 0 {
		return plotserrors.ErrNotFound
	}

	return nil
}

func (r *mongoPlotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
