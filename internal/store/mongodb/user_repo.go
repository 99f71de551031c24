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

type UserRepo struct {
	collection *mongo.Collection
}

func NewUserRepo(db *DB, collectionName string) *UserRepo {
	return &UserRepo{collection: db.Database.Collection(collectionName)}
}

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Status == "" {
		u.Status = domain.StatusOffline
	}
	if _, err := r.collection.InsertOne(ctx, u); err != nil {
		logrus.WithError(err).Error("Failed to insert user")
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepo) List(ctx context.Context, offset, limit int) ([]*domain.User, error) {
	opts := options.Find().
		SetSkip(int64(offset)).
		SetLimit(int64(limit)).
		SetSort(bson.M{"username": 1})
	return r.find(ctx, bson.M{}, opts)
}

func (r *UserRepo) ListOnline(ctx context.Context) ([]*domain.User, error) {
	opts := options.Find().SetSort(bson.M{"last_connection": -1})
	return r.find(ctx, bson.M{"status": domain.StatusOnline}, opts)
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = time.Now().UTC()
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		logrus.WithError(err).WithField("user_id", u.ID).Error("Failed to update user")
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepo) SetPresence(ctx context.Context, id, status, sessionID string, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"status":          status,
		"session_id":      sessionID,
		"last_connection": at,
		"updated_at":      at,
	}}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		logrus.WithError(err).WithField("user_id", id).Error("Failed to set presence")
		return fmt.Errorf("set presence: %w", err)
	}
	return nil
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var u domain.User
	err := r.collection.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		logrus.WithError(err).Error("Failed to get user")
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.User, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.WithError(err).Error("Failed to find users")
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []*domain.User
	for cursor.Next(ctx) {
		var u domain.User
		if err := cursor.Decode(&u); err != nil {
			logrus.WithError(err).Error("Failed to decode user")
			continue
		}
		users = append(users, &u)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("users cursor: %w", err)
	}
	return users, nil
}
