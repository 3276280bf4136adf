package database

import (
	"context"
	"fmt"
	"time"

	"storefront/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const migrationsCollection = "migrations"

type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, db *mongo.Database) error
	Down        func(ctx context.Context, db *mongo.Database) error
}

type Migrator struct {
	db         *mongo.Database
	migrations []Migration
	log        *logger.Logger
}

// NewMigrator prepares the schema migrations for the analytics events
// collection named eventsCollection.
func NewMigrator(db *mongo.Database, eventsCollection string, log *logger.Logger) *Migrator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Migrator{
		db:         db,
		migrations: Migrations(eventsCollection),
		log:        log.WithComponent("migrator"),
	}
}

func (m *Migrator) Up(ctx context.Context) error {
	currentVersion, err := m.getCurrentVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if migration.Version <= currentVersion {
			continue
		}

		m.log.WithField("version", migration.Version).Infof("Running migration: %s", migration.Description)

		if err := migration.Up(ctx, m.db); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if err := m.updateVersion(ctx, migration.Version); err != nil {
			return fmt.Errorf("failed to update migration version: %w", err)
		}
	}

	return nil
}

func (m *Migrator) Down(ctx context.Context, targetVersion int) error {
	currentVersion, err := m.getCurrentVersion(ctx)
	if err != nil {
		return err
	}

	for i := len(m.migrations) - 1; i >= 0; i-- {
		migration := m.migrations[i]
		if migration.Version > currentVersion || migration.Version <= targetVersion {
			continue
		}

		m.log.WithField("version", migration.Version).Infof("Reverting migration: %s", migration.Description)

		if err := migration.Down(ctx, m.db); err != nil {
			return fmt.Errorf("migration %d rollback failed: %w", migration.Version, err)
		}

		previousVersion := targetVersion
		if i > 0 {
			previousVersion = m.migrations[i-1].Version
		}

		if err := m.updateVersion(ctx, previousVersion); err != nil {
			return fmt.Errorf("failed to update migration version: %w", err)
		}
	}

	return nil
}

func (m *Migrator) getCurrentVersion(ctx context.Context) (int, error) {
	var result struct {
		Version int `bson:"version"`
	}

	err := m.db.Collection(migrationsCollection).FindOne(ctx, bson.D{}).Decode(&result)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, nil
		}
		return 0, err
	}

	return result.Version, nil
}

func (m *Migrator) updateVersion(ctx context.Context, version int) error {
	_, err := m.db.Collection(migrationsCollection).ReplaceOne(
		ctx,
		bson.D{},
		bson.D{{Key: "version", Value: version}, {Key: "updated_at", Value: time.Now()}},
		options.Replace().SetUpsert(true),
	)

	return err
}

// Migrations lists the schema steps for the events collection in order.
func Migrations(eventsCollection string) []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create analytics event indexes",
			Up: func(ctx context.Context, db *mongo.Database) error {
				_, err := db.Collection(eventsCollection).Indexes().CreateMany(ctx, AnalyticsEventIndexes())
				return err
			},
			Down: func(ctx context.Context, db *mongo.Database) error {
				_, err := db.Collection(eventsCollection).Indexes().DropAll(ctx)
				return err
			},
		},
		{
			Version:     2,
			Description: "Index analytics events by session",
			Up: func(ctx context.Context, db *mongo.Database) error {
				_, err := db.Collection(eventsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
					Keys:    bson.D{{Key: "sessionId", Value: 1}, {Key: "timestamp", Value: -1}},
					Options: options.Index().SetName("session_timestamp"),
				})
				return err
			},
			Down: func(ctx context.Context, db *mongo.Database) error {
				_, err := db.Collection(eventsCollection).Indexes().DropOne(ctx, "session_timestamp")
				return err
			},
		},
	}
}

// AnalyticsEventIndexes covers the summary's range scans and the group-by
// fields.
func AnalyticsEventIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("timestamp"),
		},
		{
			Keys:    bson.D{{Key: "eventType", Value: 1}},
			Options: options.Index().SetName("event_type"),
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}, {Key: "eventType", Value: 1}},
			Options: options.Index().SetName("timestamp_event_type"),
		},
		{
			Keys:    bson.D{{Key: "metadata.productId", Value: 1}},
			Options: options.Index().SetName("metadata_product_id").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "metadata.category", Value: 1}},
			Options: options.Index().SetName("metadata_category").SetSparse(true),
		},
	}
}
