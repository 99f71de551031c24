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

type MessageRepo struct {
	collection *mongo.Collection
	users      string
}

func NewMessageRepo(db *DB, collectionName, userCollectionName string) *MessageRepo {
	return &MessageRepo{
		collection: db.Database.Collection(collectionName),
		users:      userCollectionName,
	}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	if _, err := r.collection.InsertOne(ctx, m); err != nil {
		logrus.WithError(err).Error("Failed to insert message")
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var m domain.Message
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		logrus.WithError(err).WithField("message_id", id).Error("Failed to get message")
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &m, nil
}

func (r *MessageRepo) Update(ctx context.Context, m *domain.Message) error {
	m.UpdatedAt = time.Now().UTC()
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		logrus.WithError(err).WithField("message_id", m.ID).Error("Failed to update message")
		return fmt.Errorf("update message: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func betweenFilter(userID, peerID string) bson.M {
	return bson.M{"$or": []bson.M{
		{"sender_id": userID, "recipient_id": peerID},
		{"sender_id": peerID, "recipient_id": userID},
	}}
}

func (r *MessageRepo) ListBetween(ctx context.Context, userID, peerID string, offset, limit int) ([]*domain.Message, error) {
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, betweenFilter(userID, peerID), opts)
	if err != nil {
		logrus.WithError(err).Error("Failed to list messages")
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var res []*domain.Message
	for cursor.Next(ctx) {
		var m domain.Message
		if err := cursor.Decode(&m); err != nil {
			logrus.WithError(err).Error("Failed to decode message")
			continue
		}
		res = append(res, &m)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("messages cursor: %w", err)
	}
	return res, nil
}

func (r *MessageRepo) CountBetween(ctx context.Context, userID, peerID string) (int, error) {
	// Tombstoned messages stay listed, so they count toward the total.
	count, err := r.collection.CountDocuments(ctx, betweenFilter(userID, peerID))
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return int(count), nil
}

func (r *MessageRepo) MarkAllReadFrom(ctx context.Context, senderID, recipientID string, at time.Time) error {
	filter := bson.M{
		"sender_id":    senderID,
		"recipient_id": recipientID,
		"read_at":      nil,
	}
	// $ifNull keeps an existing received stamp; read always implies received.
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"received_at": bson.M{"$ifNull": bson.A{"$received_at", at}},
			"read_at":     at,
			"updated_at":  at,
		}}},
	}
	if _, err := r.collection.UpdateMany(ctx, filter, update); err != nil {
		logrus.WithError(err).Error("Failed to mark messages read")
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

// conversationRow is the aggregation output joining the peer user document.
type conversationRow struct {
	Peer        domain.User    `bson:"peer"`
	LastMessage domain.Message `bson:"last_message"`
	UnreadCount int            `bson:"unread_count"`
}

func (r *MessageRepo) Conversations(ctx context.Context, userID string) ([]*domain.ConversationSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": []bson.M{
			{"sender_id": userID},
			{"recipient_id": userID},
		}}}},
		{{Key: "$sort", Value: bson.M{"created_at": -1}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$sender_id", userID}},
				"$recipient_id",
				"$sender_id",
			}},
			"last_message": bson.M{"$first": "$$ROOT"},
			"unread_count": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$recipient_id", userID}},
					bson.M{"$eq": bson.A{"$read_at", nil}},
				}},
				1,
				0,
			}}},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         r.users,
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "peer",
		}}},
		{{Key: "$unwind", Value: "$peer"}},
		{{Key: "$sort", Value: bson.M{"last_message.created_at": -1}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		logrus.WithError(err).Error("Failed to aggregate conversations")
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var res []*domain.ConversationSummary
	for cursor.Next(ctx) {
		var row conversationRow
		if err := cursor.Decode(&row); err != nil {
			logrus.WithError(err).Error("Failed to decode conversation")
			continue
		}
		peer := row.Peer
		last := row.LastMessage
		res = append(res, &domain.ConversationSummary{
			Peer:        &peer,
			LastMessage: &last,
			UnreadCount: row.UnreadCount,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("conversations cursor: %w", err)
	}
	return res, nil
}
