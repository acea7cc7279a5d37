package models

import "strings"

// ApplyRequest is shared by the draft, send and combined apply endpoints.
// A non-empty EmailBody (markdown) means "send"; otherwise a draft is generated.
type ApplyRequest struct {
	PostText      string `json:"postText" validate:"max=50000"`
	DetectedEmail string `json:"detectedEmail" validate:"omitempty,email"`
	DetectedRole  string `json:"detectedRole" validate:"max=200"`
	EmailBody     string `json:"emailBody" validate:"max=20000"`
	Subject       string `json:"subject" validate:"max=300"`
}

func (r *ApplyRequest) Validate() map[string]string {
	return validateStruct(r)
}

func (r *ApplyRequest) WantsSend() bool {
	return strings.TrimSpace(r.EmailBody) != ""
}

type DraftResponse struct {
	Subject        string `json:"subject"`
	GeneratedEmail string `json:"generatedEmail"`
	To             string `json:"to"`
	Role           string `json:"role"`
}

type SendResponse struct {
	Message string `json:"message"`
	To      string `json:"to"`
}

type RewriteRequest struct {
	CurrentEmail string `json:"currentEmail" validate:"required,max=20000"`
	Prompt       string `json:"prompt" validate:"required,max=1000"`
}

func (r *RewriteRequest) Validate() map[string]string {
	return validateStruct(r)
}

type RewriteResponse struct {
	RewrittenEmail string `json:"rewrittenEmail"`
}
