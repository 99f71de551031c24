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

type ContactRepo struct {
	collection *mongo.Collection
}

func NewContactRepo(db *DB, collectionName string) *ContactRepo {
	return &ContactRepo{collection: db.Database.Collection(collectionName)}
}

var _ domain.ContactRepository = (*ContactRepo)(nil)

func (r *ContactRepo) Create(ctx context.Context, c *domain.Contact) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if _, err := r.collection.InsertOne(ctx, c); err != nil {
		logrus.WithError(err).Error("Failed to insert contact")
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func (r *ContactRepo) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *ContactRepo) GetPair(ctx context.Context, userID, contactID string) (*domain.Contact, error) {
	return r.findOne(ctx, bson.M{"user_id": userID, "contact_id": contactID})
}

func (r *ContactRepo) ListForUser(ctx context.Context, userID, status string) ([]*domain.Contact, error) {
	filter := bson.M{"user_id": userID}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.M{"updated_at": -1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.WithError(err).Error("Failed to list contacts")
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer cursor.Close(ctx)

	var res []*domain.Contact
	for cursor.Next(ctx) {
		var c domain.Contact
		if err := cursor.Decode(&c); err != nil {
			logrus.WithError(err).Error("Failed to decode contact")
			continue
		}
		res = append(res, &c)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("contacts cursor: %w", err)
	}
	return res, nil
}

func (r *ContactRepo) Update(ctx context.Context, c *domain.Contact) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": c.ID}, c)
	if err != nil {
		logrus.WithError(err).WithField("contact_id", c.ID).Error("Failed to update contact")
		return fmt.Errorf("update contact: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ContactRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	return nil
}

func (r *ContactRepo) DeletePair(ctx context.Context, userID, contactID string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"user_id": userID, "contact_id": contactID}); err != nil {
		return fmt.Errorf("delete contact pair: %w", err)
	}
	return nil
}

func (r *ContactRepo) IsBlocked(ctx context.Context, ownerID, targetID string) (bool, error) {
	filter := bson.M{
		"user_id":    ownerID,
		"contact_id": targetID,
		"status":     domain.ContactBlocked,
	}
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("check blocked: %w", err)
	}
	return count > 0, nil
}

func (r *ContactRepo) findOne(ctx context.Context, filter bson.M) (*domain.Contact, error) {
	var c domain.Contact
	err := r.collection.FindOne(ctx, filter).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		logrus.WithError(err).Error("Failed to get contact")
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &c, nil
}
