package services

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo opens one client for the whole process and verifies it with a ping.
func ConnectMongo(ctx context.Context, mongoURI string, useTLS bool) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(mongoURI).SetConnectTimeout(10 * time.Second)
	if useTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "mongo connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "mongo ping")
	}
	return client, nil
}
