package session

import (
	"context"
	"errors"

	"geoattend-svc/src/clients"
	"geoattend-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type repository struct {
	collection *mongo.Collection
}

type Repository interface {
	GetByID(ctx context.Context, sessionID string) (*Session, error)
	Insert(ctx context.Context, session *Session) error
}

func NewSessionRepository(db *clients.MongoDB, collectionName string) Repository {
	collection := db.Database.Collection(collectionName)
	return &repository{collection: collection}
}

func (r *repository) GetByID(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	filter := bson.M{"_id": sessionID}

	err := r.collection.FindOne(ctx, filter).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrSessionNotFound
		}
		logrus.WithError(err).WithField("session_id", sessionID).Error("Failed to get session")
		return nil, models.ErrDatabaseQuery
	}

	return &session, nil
}

func (r *repository) Insert(ctx context.Context, session *Session) error {
	_, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		logrus.WithError(err).WithField("session_id", session.ID).Error("Failed to insert session")
		return models.ErrDatabaseInsert
	}

	return nil
}
