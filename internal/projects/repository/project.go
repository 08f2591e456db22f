package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	projectserrors "plotbook/internal/projects/errors"
	"plotbook/pkg/config"
	"plotbook/pkg/model"
)

const (
	CollectionName = "Projects"
)

type mongoProjectRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	FindByID(ctx context.Context, id string) (*model.Project, error)
	UpdateSettings(ctx context.Context, id string, holdTimeHours int) error
}

func NewMongoProjectRepository(cfg *config.Config) ProjectRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoProjectRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoProjectRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoProjectRepository) Create(ctx context.Context, project *model.Project) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	project.CreatedAt = now
	project.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, project)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		project.ID = oid.Hex()
	}
	return nil
}

func (r *mongoProjectRepository) FindByID(ctx context.Context, id string) (*model.Project, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", projectserrors.ErrInvalidID, id)
	}

	var project model.Project
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&project)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, projectserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}

	return &project, nil
}

func (r *mongoProjectRepository) UpdateSettings(ctx context.Context, id string, holdTimeHours int) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", projectserrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"hold_time_hours": holdTimeHours,
			"updated_at":      time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update project settings: %w", err)
	}

	if result.MatchedCount == 0 {
		return projectserrors.ErrNotFound
	}

	return nil
}
