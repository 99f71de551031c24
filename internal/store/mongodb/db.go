package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pigeon/internal/config"
)

// DB bundles the Mongo client with the application database handle.
type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
	cfg      *config.Database
}

func Connect(ctx context.Context, cfg *config.Database) (*DB, error) {
	logrus.WithField("url", cfg.Url).Info("Connecting to MongoDB...")

	connectCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeout)*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Url))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	logrus.Info("Connected to MongoDB")
	return &DB{
		Client:   client,
		Database: client.Database(cfg.DbName),
		cfg:      cfg,
	}, nil
}

func (d *DB) Close(ctx context.Context) error {
	return d.Client.Disconnect(ctx)
}

// EnsureIndexes creates the collection indexes. Idempotent.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	users := d.Database.Collection(d.cfg.Collections.Users)
	messages := d.Database.Collection(d.cfg.Collections.Messages)
	contacts := d.Database.Collection(d.cfg.Collections.Contacts)
	notifications := d.Database.Collection(d.cfg.Collections.Notifications)

	unique := options.Index().SetUnique(true)

	_, err := users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	_, err = messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "read_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create message indexes: %w", err)
	}

	_, err = contacts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "contact_id", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create contact indexes: %w", err)
	}

	_, err = notifications.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "read", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create notification indexes: %w", err)
	}

	return nil
}
