package services

import "github.com/pkg/errors"

var (
	// ErrProfileNotFound means the caller is authenticated but has no stored profile yet.
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidProfile  = errors.New("invalid profile")
	ErrInvalidRequest  = errors.New("invalid request")
	// ErrInvalidRecipient means no usable destination address was given or found in the post.
	ErrInvalidRecipient = errors.New("invalid recipient")

	// ErrNoCredential means the profile holds neither a Google access nor refresh token.
	ErrNoCredential = errors.New("no google credential stored")
	// ErrReauthRequired means the stored Google tokens can no longer be refreshed.
	ErrReauthRequired = errors.New("google authorization expired")
	// ErrSendFailed means the mail provider rejected the message after the single retry.
	ErrSendFailed = errors.New("send failed")
	// ErrUpstreamUnavailable covers an unreachable or unconfigured LLM or mail provider.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMailUnauthorized is returned by a MailSender when the provider answers 401.
	ErrMailUnauthorized = errors.New("mail provider rejected access token")
)
