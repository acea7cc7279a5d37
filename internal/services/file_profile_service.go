package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/quickapply/backend/internal/models"
	"github.com/quickapply/backend/internal/storage"
)

// fileProfile carries the fields models.Profile hides from its API JSON.
type fileProfile struct {
	Profile            *models.Profile `json:"profile"`
	PasswordHash       string          `json:"passwordHash,omitempty"`
	GoogleAccessToken  string          `json:"googleAccessToken,omitempty"`
	GoogleRefreshToken string          `json:"googleRefreshToken,omitempty"`
	GoogleTokenExpiry  time.Time       `json:"googleTokenExpiry,omitempty"`
}

func (r *fileProfile) restore() *models.Profile {
	p := *r.Profile
	p.PasswordHash = r.PasswordHash
	p.SetTokens(models.OAuthTokens{
		AccessToken:  r.GoogleAccessToken,
		RefreshToken: r.GoogleRefreshToken,
		Expiry:       r.GoogleTokenExpiry,
	})
	return &p
}

func newFileProfile(p *models.Profile) fileProfile {
	cp := *p
	return fileProfile{
		Profile:            &cp,
		PasswordHash:       p.PasswordHash,
		GoogleAccessToken:  p.GoogleAccessToken,
		GoogleRefreshToken: p.GoogleRefreshToken,
		GoogleTokenExpiry:  p.GoogleTokenExpiry,
	}
}

type profileFile struct {
	Profiles []fileProfile `json:"profiles"`
}

// FileProfileService keeps every profile in one JSON document. Used for local
// development when no MongoDB is configured.
type FileProfileService struct {
	store *storage.JSONStore
}

func NewFileProfileService(dataDir string) (*FileProfileService, error) {
	store, err := storage.NewJSONStore(dataDir, "profiles.json")
	if err != nil {
		return nil, errors.Wrap(err, "open profile file")
	}
	return &FileProfileService{store: store}, nil
}

func (s *FileProfileService) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	return s.find(func(p *models.Profile) bool { return p.IDHex() == id && id != "" })
}

func (s *FileProfileService) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	email = models.NormalizeEmail(email)
	return s.find(func(p *models.Profile) bool { return email != "" && p.Email == email })
}

func (s *FileProfileService) FindByGoogleID(ctx context.Context, googleID string) (*models.Profile, error) {
	return s.find(func(p *models.Profile) bool { return googleID != "" && p.GoogleID == googleID })
}

func (s *FileProfileService) find(match func(*models.Profile) bool) (*models.Profile, error) {
	var data profileFile
	if err := s.store.Load(&data); err != nil {
		return nil, errors.Wrap(err, "load profiles")
	}
	for i := range data.Profiles {
		if match(data.Profiles[i].Profile) {
			return data.Profiles[i].restore(), nil
		}
	}
	return nil, ErrProfileNotFound
}

func (s *FileProfileService) Insert(ctx context.Context, p *models.Profile) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	var data profileFile
	return s.store.Update(&data, func() error {
		for _, rec := range data.Profiles {
			if rec.Profile.Email == p.Email {
				return errors.Wrapf(ErrInvalidProfile, "email %s already registered", p.Email)
			}
		}
		data.Profiles = append(data.Profiles, newFileProfile(p))
		return nil
	})
}

func (s *FileProfileService) Replace(ctx context.Context, p *models.Profile) error {
	var data profileFile
	return s.store.Update(&data, func() error {
		idx := -1
		for i, rec := range data.Profiles {
			if rec.Profile.ID == p.ID {
				idx = i
			} else if rec.Profile.Email == p.Email {
				return errors.Wrapf(ErrInvalidProfile, "email %s already registered", p.Email)
			}
		}
		if idx < 0 {
			return ErrProfileNotFound
		}
		data.Profiles[idx] = newFileProfile(p)
		return nil
	})
}

func (s *FileProfileService) UpdateTokens(ctx context.Context, id string, tokens models.OAuthTokens) error {
	var data profileFile
	return s.store.Update(&data, func() error {
		for i := range data.Profiles {
			rec := &data.Profiles[i]
			if rec.Profile.IDHex() != id {
				continue
			}
			rec.GoogleAccessToken = tokens.AccessToken
			if tokens.RefreshToken != "" {
				rec.GoogleRefreshToken = tokens.RefreshToken
			}
			rec.GoogleTokenExpiry = tokens.Expiry
			rec.Profile.LastUpdated = time.Now().UTC()
			return nil
		}
		return ErrProfileNotFound
	})
}

func (s *FileProfileService) Count(ctx context.Context) (int64, error) {
	var data profileFile
	if err := s.store.Load(&data); err != nil {
		return 0, errors.Wrap(err, "load profiles")
	}
	return int64(len(data.Profiles)), nil
}

func (s *FileProfileService) Ping(ctx context.Context) error {
	var data profileFile
	return s.store.Load(&data)
}
