package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/quickapply/backend/internal/models"
)

const profilesCollection = "userprofiles"

type MongoProfileService struct {
	client      *mongo.Client
	profilesCol *mongo.Collection
}

func NewMongoProfileService(ctx context.Context, client *mongo.Client, dbName string) (*MongoProfileService, error) {
	col := client.Database(dbName).Collection(profilesCollection)

	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "google_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create profile indexes")
	}

	return &MongoProfileService{client: client, profilesCol: col}, nil
}

func (s *MongoProfileService) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// Not one of ours; treat like any other miss.
		return nil, ErrProfileNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoProfileService) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return s.findOne(ctx, bson.M{"email": models.NormalizeEmail(email)})
}

func (s *MongoProfileService) FindByGoogleID(ctx context.Context, googleID string) (*models.Profile, error) {
	return s.findOne(ctx, bson.M{"google_id": googleID})
}

func (s *MongoProfileService) findOne(ctx context.Context, filter bson.M) (*models.Profile, error) {
	var prof models.Profile
	err := s.profilesCol.FindOne(ctx, filter).Decode(&prof)
	if err == mongo.ErrNoDocuments {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find profile")
	}
	return &prof, nil
}

func (s *MongoProfileService) Insert(ctx context.Context, p *models.Profile) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if _, err := s.profilesCol.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Wrapf(ErrInvalidProfile, "email %s already registered", p.Email)
		}
		return errors.Wrap(err, "insert profile")
	}
	return nil
}

func (s *MongoProfileService) Replace(ctx context.Context, p *models.Profile) error {
	res, err := s.profilesCol.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Wrapf(ErrInvalidProfile, "email %s already registered", p.Email)
		}
		return errors.Wrap(err, "replace profile")
	}
	if res.MatchedCount == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// UpdateTokens only touches the token fields so a concurrent profile edit is not clobbered.
func (s *MongoProfileService) UpdateTokens(ctx context.Context, id string, tokens models.OAuthTokens) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrProfileNotFound
	}

	set := bson.M{
		"google_access_token": tokens.AccessToken,
		"last_updated":        time.Now().UTC(),
	}
	unset := bson.M{}
	if tokens.RefreshToken != "" {
		set["google_refresh_token"] = tokens.RefreshToken
	}
	if tokens.Expiry.IsZero() {
		unset["google_token_expiry"] = ""
	} else {
		set["google_token_expiry"] = tokens.Expiry
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	res, err := s.profilesCol.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return errors.Wrap(err, "update profile tokens")
	}
	if res.MatchedCount == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (s *MongoProfileService) Count(ctx context.Context) (int64, error) {
	return s.profilesCol.CountDocuments(ctx, bson.M{})
}

func (s *MongoProfileService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}
