package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "jane@example.com", NormalizeEmail("  Jane@Example.COM "))
}

func TestSaveProfileRequest_Validate(t *testing.T) {
	ok := SaveProfileRequest{Email: "jane@example.com", ResumeURL: "https://cv.example.com/jane.pdf"}
	assert.Empty(t, ok.Validate())

	bad := SaveProfileRequest{Email: "not-an-email", GitHubURL: "github"}
	errs := bad.Validate()
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "githubUrl")
}

func TestUpdateProfileRequest_ApplyOnlyTouchesSetFields(t *testing.T) {
	p := &Profile{Email: "jane@example.com", FullName: "Jane", Bio: "old bio", Skills: "Go"}
	email := "JANE.DOE@Example.com"
	bio := "new bio"
	req := UpdateProfileRequest{Email: &email, Bio: &bio}

	assert.Empty(t, req.Validate())
	req.Apply(p)

	assert.Equal(t, "jane.doe@example.com", p.Email)
	assert.Equal(t, "new bio", p.Bio)
	assert.Equal(t, "Jane", p.FullName)
	assert.Equal(t, "Go", p.Skills)
}

func TestProfile_LinksSkipsEmpty(t *testing.T) {
	p := &Profile{ResumeURL: "https://r.example.com", LinkedInURL: " https://linkedin.com/in/jane "}
	links := p.Links()

	assert.Equal(t, []ProfileLink{
		{Label: "Resume", URL: "https://r.example.com"},
		{Label: "LinkedIn", URL: "https://linkedin.com/in/jane"},
	}, links)
}

func TestRewriteRequest_Validate(t *testing.T) {
	errs := (&RewriteRequest{}).Validate()
	assert.Equal(t, "currentEmail is required", errs["currentEmail"])
	assert.Equal(t, "prompt is required", errs["prompt"])
}
