package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Profile is a user's application data plus the Google OAuth material used to send mail
// on their behalf. Keyed by lower-cased email; googleId is a secondary lookup.
type Profile struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Email        string             `json:"email" bson:"email"`
	GoogleID     string             `json:"googleId,omitempty" bson:"google_id,omitempty"`
	PasswordHash string             `json:"-" bson:"password,omitempty"`

	GoogleAccessToken  string    `json:"-" bson:"google_access_token,omitempty"`
	GoogleRefreshToken string    `json:"-" bson:"google_refresh_token,omitempty"`
	GoogleTokenExpiry  time.Time `json:"-" bson:"google_token_expiry,omitempty"`

	FullName     string `json:"fullName" bson:"full_name"`
	CurrentRole  string `json:"currentRole" bson:"current_role"`
	Bio          string `json:"bio" bson:"bio"`
	Skills       string `json:"skills" bson:"skills"`
	ResumeURL    string `json:"resumeUrl,omitempty" bson:"resume_url,omitempty"`
	PortfolioURL string `json:"portfolioUrl,omitempty" bson:"portfolio_url,omitempty"`
	LinkedInURL  string `json:"linkedinUrl,omitempty" bson:"linkedin_url,omitempty"`
	GitHubURL    string `json:"githubUrl,omitempty" bson:"github_url,omitempty"`
	Phone        string `json:"phone,omitempty" bson:"phone,omitempty"`

	LastUpdated time.Time `json:"lastUpdated" bson:"last_updated"`
}

// OAuthTokens is the persisted Google token set. Values are opaque.
type OAuthTokens struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

func (p *Profile) Tokens() OAuthTokens {
	return OAuthTokens{
		AccessToken:  p.GoogleAccessToken,
		RefreshToken: p.GoogleRefreshToken,
		Expiry:       p.GoogleTokenExpiry,
	}
}

func (p *Profile) SetTokens(t OAuthTokens) {
	p.GoogleAccessToken = t.AccessToken
	p.GoogleRefreshToken = t.RefreshToken
	p.GoogleTokenExpiry = t.Expiry
}

// HasGoogleAuth reports whether any OAuth material is stored.
func (p *Profile) HasGoogleAuth() bool {
	return p.GoogleAccessToken != "" || p.GoogleRefreshToken != ""
}

// IDHex returns the hex form of the id, or "" for an unsaved profile.
func (p *Profile) IDHex() string {
	if p.ID.IsZero() {
		return ""
	}
	return p.ID.Hex()
}

// NormalizeEmail is the single place emails are canonicalized before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ProfileLink is a labelled URL rendered under the application email.
type ProfileLink struct {
	Label string
	URL   string
}

// Links returns the profile's non-empty links in display order.
func (p *Profile) Links() []ProfileLink {
	candidates := []ProfileLink{
		{Label: "Resume", URL: p.ResumeURL},
		{Label: "Portfolio", URL: p.PortfolioURL},
		{Label: "GitHub", URL: p.GitHubURL},
		{Label: "LinkedIn", URL: p.LinkedInURL},
	}
	out := make([]ProfileLink, 0, len(candidates))
	for _, l := range candidates {
		if strings.TrimSpace(l.URL) != "" {
			out = append(out, ProfileLink{Label: l.Label, URL: strings.TrimSpace(l.URL)})
		}
	}
	return out
}

// SaveProfileRequest is the body of POST /api/profile/save. Email may be omitted when the
// caller presents an OAuth credential carrying one.
type SaveProfileRequest struct {
	Email        string `json:"email" validate:"omitempty,email"`
	FullName     string `json:"fullName" validate:"max=200"`
	CurrentRole  string `json:"currentRole" validate:"max=200"`
	Bio          string `json:"bio" validate:"max=5000"`
	Skills       string `json:"skills" validate:"max=2000"`
	ResumeURL    string `json:"resumeUrl" validate:"omitempty,url"`
	PortfolioURL string `json:"portfolioUrl" validate:"omitempty,url"`
	LinkedInURL  string `json:"linkedinUrl" validate:"omitempty,url"`
	GitHubURL    string `json:"githubUrl" validate:"omitempty,url"`
	Phone        string `json:"phone" validate:"max=40"`
}

func (r *SaveProfileRequest) Validate() map[string]string {
	return validateStruct(r)
}

// Apply copies the request's content fields onto p.
func (r *SaveProfileRequest) Apply(p *Profile) {
	p.FullName = strings.TrimSpace(r.FullName)
	p.CurrentRole = strings.TrimSpace(r.CurrentRole)
	p.Bio = r.Bio
	p.Skills = r.Skills
	p.ResumeURL = strings.TrimSpace(r.ResumeURL)
	p.PortfolioURL = strings.TrimSpace(r.PortfolioURL)
	p.LinkedInURL = strings.TrimSpace(r.LinkedInURL)
	p.GitHubURL = strings.TrimSpace(r.GitHubURL)
	p.Phone = strings.TrimSpace(r.Phone)
}

// UpdateProfileRequest is a partial update; nil fields are left unchanged.
type UpdateProfileRequest struct {
	Email        *string `json:"email" validate:"omitempty,email"`
	FullName     *string `json:"fullName" validate:"omitempty,max=200"`
	CurrentRole  *string `json:"currentRole" validate:"omitempty,max=200"`
	Bio          *string `json:"bio" validate:"omitempty,max=5000"`
	Skills       *string `json:"skills" validate:"omitempty,max=2000"`
	ResumeURL    *string `json:"resumeUrl" validate:"omitempty,url"`
	PortfolioURL *string `json:"portfolioUrl" validate:"omitempty,url"`
	LinkedInURL  *string `json:"linkedinUrl" validate:"omitempty,url"`
	GitHubURL    *string `json:"githubUrl" validate:"omitempty,url"`
	Phone        *string `json:"phone" validate:"omitempty,max=40"`
}

func (r *UpdateProfileRequest) Validate() map[string]string {
	return validateStruct(r)
}

func (r *UpdateProfileRequest) Apply(p *Profile) {
	if r.Email != nil {
		p.Email = NormalizeEmail(*r.Email)
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&p.FullName, r.FullName)
	set(&p.CurrentRole, r.CurrentRole)
	set(&p.ResumeURL, r.ResumeURL)
	set(&p.PortfolioURL, r.PortfolioURL)
	set(&p.LinkedInURL, r.LinkedInURL)
	set(&p.GitHubURL, r.GitHubURL)
	set(&p.Phone, r.Phone)
	if r.Bio != nil {
		p.Bio = *r.Bio
	}
	if r.Skills != nil {
		p.Skills = *r.Skills
	}
}

// MeResponse reports whether the credential holder has saved a profile yet.
type MeResponse struct {
	Authenticated bool     `json:"authenticated"`
	HasProfile    bool     `json:"hasProfile"`
	Email         string   `json:"email,omitempty"`
	Profile       *Profile `json:"user,omitempty"`
}

type SaveProfileResponse struct {
	Message string   `json:"message"`
	Profile *Profile `json:"profile"`
	Token   string   `json:"token,omitempty"`
}
