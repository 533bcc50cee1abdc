package attendance

import (
	"context"
	"errors"

	"geoattend-svc/src/clients"
	"geoattend-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	FindPresent(ctx context.Context, sessionID, studentID string) (*Record, error)
	Insert(ctx context.Context, record *Record) error
	ListBySession(ctx context.Context, sessionID string) ([]*Record, error)
	BulkUpsertAbsences(ctx context.Context, records []*Record) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type repository struct {
	collection *mongo.Collection
}

func NewAttendanceRepository(db *clients.MongoDB, collectionName string) Repository {
	collection := db.Database.Collection(collectionName)
	return &repository{collection: collection}
}

// EnsureIndexes creates the partial unique index that closes the
// read-then-write race on concurrent check-ins: at most one "present"
// record per (session_id, student_id). Insert maps the violation to
// ErrDuplicateRecord so the verifier can answer already_checked_in.
func (r *repository) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys: bson.D{
			{Key: "session_id", Value: 1},
			{Key: "student_id", Value: 1},
		},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"status": StatusPresent}),
	}

	if _, err := r.collection.Indexes().CreateOne(ctx, model); err != nil {
		logrus.WithError(err).Error("Failed to ensure attendance indexes")
		return err
	}
	return nil
}

func (r *repository) FindPresent(ctx context.Context, sessionID, studentID string) (*Record, error) {
	filter := bson.M{
		"session_id": sessionID,
		"student_id": studentID,
		"status":     StatusPresent,
	}

	var record Record
	err := r.collection.FindOne(ctx, filter).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"student_id": studentID,
		}).Error("Failed to check for existing check-in")
		return nil, models.ErrDatabaseQuery
	}

	return &record, nil
}

func (r *repository) Insert(ctx context.Context, record *Record) error {
	res, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrDuplicateRecord
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": record.SessionID,
			"student_id": record.StudentID,
			"status":     record.Status,
		}).Error("Failed to insert attendance record")
		return models.ErrDatabaseInsert
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		record.ID = oid
	}
	return nil
}

func (r *repository) ListBySession(ctx context.Context, sessionID string) ([]*Record, error) {
	filter := bson.M{"session_id": sessionID}
	opts := options.Find().SetSort(bson.M{"timestamp": -1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Error("Failed to find attendance records")
		return nil, models.ErrDatabaseQuery
	}
	defer cursor.Close(ctx)

	var records []*Record
	for cursor.Next(ctx) {
		var record Record
		if err := cursor.Decode(&record); err != nil {
			logrus.WithError(err).Error("Failed to decode attendance record")
			continue
		}
		records = append(records, &record)
	}

	if err := cursor.Err(); err != nil {
		logrus.WithError(err).Error("Cursor error")
		return nil, models.ErrDatabaseQuery
	}

	return records, nil
}

// BulkUpsertAbsences writes absence records in one best-effort batch. Each
// write is an insert-or-ignore keyed on (session_id, student_id, status),
// so re-running finalization adds nothing.
func (r *repository) BulkUpsertAbsences(ctx context.Context, records []*Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	writes := make([]mongo.WriteModel, 0, len(records))
	for _, record := range records {
		filter := bson.M{
			"session_id": record.SessionID,
			"student_id": record.StudentID,
			"status":     StatusAbsent,
		}
		update := bson.M{"$setOnInsert": bson.M{
			"session_id":   record.SessionID,
			"student_id":   record.StudentID,
			"student_name": record.StudentName,
			"course_id":    record.CourseID,
			"status":       StatusAbsent,
			"verified":     false,
			"timestamp":    record.Timestamp,
		}}
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(update).
			SetUpsert(true))
	}

	res, err := r.collection.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		logrus.WithError(err).WithField("count", len(writes)).Error("Failed to bulk write absence records")
		return 0, models.ErrDatabaseInsert
	}

	return res.UpsertedCount, nil
}
