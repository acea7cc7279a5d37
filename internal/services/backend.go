package services

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/mongo"
)

// Backend is the persistence chosen at startup: MongoDB when a URI is configured,
// otherwise a JSON file plus in-memory revocations.
type Backend struct {
	Name        string
	Profiles    ProfileStore
	Revocations RevocationStore

	client *mongo.Client
}

func OpenBackend(ctx context.Context, mongoURI, mongoDB string, mongoTLS bool, dataDir string) (*Backend, error) {
	if mongoURI == "" {
		profiles, err := NewFileProfileService(dataDir)
		if err != nil {
			return nil, err
		}
		log.Printf("[storage] MONGO_URI not set, using file store in %s", dataDir)
		return &Backend{Name: "file", Profiles: profiles, Revocations: NewMemoryRevocationService()}, nil
	}

	client, err := ConnectMongo(ctx, mongoURI, mongoTLS)
	if err != nil {
		return nil, err
	}
	profiles, err := NewMongoProfileService(ctx, client, mongoDB)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	revocations, err := NewMongoRevocationService(ctx, client, mongoDB)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &Backend{Name: "mongo", Profiles: profiles, Revocations: revocations, client: client}, nil
}

func (b *Backend) Close(ctx context.Context) error {
	if b.client == nil {
		return nil
	}
	return b.client.Disconnect(ctx)
}
