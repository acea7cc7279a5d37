package services

import (
	"regexp"
	"strings"
)

// DefaultRole is used when neither the caller nor the post names a role.
const DefaultRole = "Potential Role"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._-]+@[a-zA-Z0-9._-]+\.[a-zA-Z0-9_-]+`)

	rolePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bhiring\s+(?:an?\s+)?([A-Za-z][A-Za-z0-9 /+#.-]{1,60}?)(?:\s+(?:to|in|at|for|with|who)\b|[.,!;:\n(]|$)`),
		regexp.MustCompile(`(?i)\blooking\s+for\s+(?:an?\s+)?([A-Za-z][A-Za-z0-9 /+#.-]{1,60}?)(?:\s+(?:to|in|at|for|with|who)\b|[.,!;:\n(]|$)`),
		regexp.MustCompile(`(?im)\b(?:role|position)\s*:\s*([^\n.,;]{2,60})`),
	}
)

// JobDetails is the recipient and role pulled from a job post.
type JobDetails struct {
	Email string
	Role  string
}

type JobParser struct{}

// Extract keeps caller-detected values and fills the gaps from the post text.
func (JobParser) Extract(text, detectedEmail, detectedRole string) JobDetails {
	d := JobDetails{
		Email: strings.TrimSpace(detectedEmail),
		Role:  strings.TrimSpace(detectedRole),
	}
	if d.Email == "" {
		d.Email = strings.Trim(emailPattern.FindString(text), ".")
	}
	if d.Role == "" {
		d.Role = extractRole(text)
	}
	if d.Role == "" {
		d.Role = DefaultRole
	}
	return d
}

func extractRole(text string) string {
	for _, re := range rolePatterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		role := strings.TrimSpace(m[1])
		if role != "" {
			return role
		}
	}
	return ""
}
