package services

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RevocationStore remembers logged-out credential ids until the credential would have
// expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, credentialID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, credentialID string) (bool, error)
}

type revokedCredential struct {
	ID        string    `bson:"_id"`
	ExpiresAt time.Time `bson:"expires_at"`
	RevokedAt time.Time `bson:"revoked_at"`
}

type MongoRevocationService struct {
	col *mongo.Collection
}

func NewMongoRevocationService(ctx context.Context, client *mongo.Client, dbName string) (*MongoRevocationService, error) {
	col := client.Database(dbName).Collection("revoked_credentials")

	// Mongo's TTL monitor drops entries once the credential is past its expiry.
	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create revocation ttl index")
	}
	return &MongoRevocationService{col: col}, nil
}

func (s *MongoRevocationService) Revoke(ctx context.Context, credentialID string, expiresAt time.Time) error {
	if credentialID == "" {
		return nil
	}
	now := time.Now().UTC()
	update := bson.M{
		"$setOnInsert": bson.M{"revoked_at": now},
		"$set":         bson.M{"expires_at": expiresAt.UTC()},
	}
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": credentialID}, update, options.Update().SetUpsert(true))
	return errors.Wrap(err, "revoke credential")
}

func (s *MongoRevocationService) IsRevoked(ctx context.Context, credentialID string) (bool, error) {
	if credentialID == "" {
		return false, nil
	}
	var rec revokedCredential
	err := s.col.FindOne(ctx, bson.M{"_id": credentialID}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "lookup revoked credential")
	}
	// The TTL monitor runs about once a minute.
	return time.Now().Before(rec.ExpiresAt), nil
}

// MemoryRevocationService is the single-process store used with the file profile store.
type MemoryRevocationService struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocationService() *MemoryRevocationService {
	return &MemoryRevocationService{revoked: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryRevocationService) Revoke(_ context.Context, credentialID string, expiresAt time.Time) error {
	if credentialID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revoked[credentialID] = expiresAt
	s.cleanupExpired()
	return nil
}

func (s *MemoryRevocationService) IsRevoked(_ context.Context, credentialID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.revoked[credentialID]
	if !ok {
		return false, nil
	}
	if s.now().After(expiry) {
		delete(s.revoked, credentialID)
		return false, nil
	}
	return true, nil
}

func (s *MemoryRevocationService) cleanupExpired() {
	now := s.now()
	for id, expiry := range s.revoked {
		if now.After(expiry) {
			delete(s.revoked, id)
		}
	}
}
