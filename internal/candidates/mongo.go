package candidates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore reads the candidates, interviews and job_postings collections.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func Connect(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

type candidateDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Candidate `bson:",inline"`
}

type interviewDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Interview `bson:",inline"`
}

func (m *MongoStore) FindCandidate(ctx context.Context, filter bson.M) (Candidate, bool, error) {
	var doc candidateDoc
	err := m.db.Collection("candidates").FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Candidate{}, false, nil
	}
	if err != nil {
		return Candidate{}, false, err
	}
	doc.Candidate.ID = doc.ID.Hex()
	return doc.Candidate, true, nil
}

func (m *MongoStore) FindInterview(ctx context.Context, filter bson.M) (Interview, bool, error) {
	var doc interviewDoc
	err := m.db.Collection("interviews").FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Interview{}, false, nil
	}
	if err != nil {
		return Interview{}, false, err
	}
	doc.Interview.ID = doc.ID.Hex()
	return doc.Interview, true, nil
}

func (m *MongoStore) FindJobDescription(ctx context.Context, jobPostingID string) (string, error) {
	oid, err := primitive.ObjectIDFromHex(jobPostingID)
	if err != nil {
		return "", fmt.Errorf("job posting id %q: %w", jobPostingID, err)
	}
	var doc struct {
		JobDescription string `bson:"job_description"`
	}
	err = m.db.Collection("job_postings").FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return doc.JobDescription, nil
}
