package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pigeon/internal/domain"
)

type NotificationRepo struct {
	collection *mongo.Collection
}

func NewNotificationRepo(db *DB, collectionName string) *NotificationRepo {
	return &NotificationRepo{collection: db.Database.Collection(collectionName)}
}

var _ domain.NotificationRepository = (*NotificationRepo)(nil)

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()
	if _, err := r.collection.InsertOne(ctx, n); err != nil {
		logrus.WithError(err).Error("Failed to insert notification")
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var n domain.Notification
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		logrus.WithError(err).Error("Failed to get notification")
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return &n, nil
}

func (r *NotificationRepo) ListForUser(ctx context.Context, userID string, unreadOnly bool, offset, limit int) ([]*domain.Notification, error) {
	filter := bson.M{"user_id": userID}
	if unreadOnly {
		filter["read"] = false
	}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.WithError(err).Error("Failed to list notifications")
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var res []*domain.Notification
	for cursor.Next(ctx) {
		var n domain.Notification
		if err := cursor.Decode(&n); err != nil {
			logrus.WithError(err).Error("Failed to decode notification")
			continue
		}
		res = append(res, &n)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("notifications cursor: %w", err)
	}
	return res, nil
}

func (r *NotificationRepo) CountForUser(ctx context.Context, userID string, unreadOnly bool) (int, error) {
	filter := bson.M{"user_id": userID}
	if unreadOnly {
		filter["read"] = false
	}
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return int(count), nil
}

func (r *NotificationRepo) MarkRead(ctx context.Context, id string) error {
	update := bson.M{"$set": bson.M{"read": true}}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID string) error {
	update := bson.M{"$set": bson.M{"read": true}}
	if _, err := r.collection.UpdateMany(ctx, bson.M{"user_id": userID}, update); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}
