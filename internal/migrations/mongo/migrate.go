package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"plotbook/internal/migrations/mongo/validators"
)

var (
	ProjectsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}},
	}

	// Unique (project_id, plot_number) keeps plot numbers distinct within a
	// project.
	PlotsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "project_id", Value: 1},
				{Key: "plot_number", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{
			{Key: "project_id", Value: 1},
			{Key: "allocation_status", Value: 1},
		}},
	}

	// The partial unique index on plot_id admits at most one active hold per
	// plot; expired/released/converted holds stay around as history.
	HoldsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "plot_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": "active"}),
		},
		{Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "expires_at", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "project_id", Value: 1},
			{Key: "status", Value: 1},
		}},
	}

	// Unique hold_id makes hold conversion idempotent at the storage layer.
	BookingsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "hold_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{
			{Key: "project_id", Value: 1},
			{Key: "created_at", Value: -1},
		}},
		{Keys: bson.D{
			{Key: "broker_id", Value: 1},
			{Key: "created_at", Value: -1},
		}},
		{Keys: bson.D{
			{Key: "plot_id", Value: 1},
			{Key: "booking_status", Value: 1},
		}},
	}
)

func RunMigration(ctx context.Context, client *mongo.Client, dbName string) error {
	db := client.Database(dbName)
	fmt.Printf("Running plotbook Mongo migrations on database: %s\n", dbName)

	collections := map[string]struct {
		Indexes   []mongo.IndexModel
		Validator bson.M
	}{
		"Projects": {
			Indexes:   ProjectsIndexes,
			Validator: validators.ProjectValidator,
		},
		"Plots": {
			Indexes:   PlotsIndexes,
			Validator: validators.PlotValidator,
		},
		"Holds": {
			Indexes:   HoldsIndexes,
			Validator: validators.HoldValidator,
		},
		"Bookings": {
			Indexes:   BookingsIndexes,
			Validator: validators.BookingValidator,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	fmt.Println("All migrations applied successfully.")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		fmt.Printf("Creating collection: %s\n", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
	} else {
		fmt.Printf("Collection %s already exists, updating validator if needed\n", name)
		command := bson.D{
			{Key: "collMod", Value: name},
			{Key: "validator", Value: validator},
		}
		if err := db.RunCommand(ctx, command).Err(); err != nil {
			fmt.Printf("Warning: failed updating validator for %s: %v\n", name, err)
		}
	}

	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	coll := db.Collection(name)
	_, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	fmt.Printf("Ensured indexes for %s\n", name)
	return nil
}
