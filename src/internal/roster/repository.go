package roster

import (
	"context"

	"geoattend-svc/src/clients"
	"geoattend-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	ListByCourse(ctx context.Context, courseID string) ([]*Entry, error)
}

type repository struct {
	collection *mongo.Collection
}

func NewRosterRepository(db *clients.MongoDB, collectionName string) Repository {
	collection := db.Database.Collection(collectionName)
	return &repository{collection: collection}
}

func (r *repository) ListByCourse(ctx context.Context, courseID string) ([]*Entry, error) {
	filter := bson.M{"course_id": courseID}
	opts := options.Find().SetSort(bson.M{"student_id": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.WithError(err).WithField("course_id", courseID).Error("Failed to find roster entries")
		return nil, models.ErrDatabaseQuery
	}
	defer cursor.Close(ctx)

	var entries []*Entry
	for cursor.Next(ctx) {
		var entry Entry
		if err := cursor.Decode(&entry); err != nil {
			logrus.WithError(err).Error("Failed to decode roster entry")
			continue
		}
		entries = append(entries, &entry)
	}

	if err := cursor.Err(); err != nil {
		logrus.WithError(err).Error("Cursor error")
		return nil, models.ErrDatabaseQuery
	}

	return entries, nil
}
