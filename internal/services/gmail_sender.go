package services

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// MailSender submits a composed message with the user's access token.
type MailSender interface {
	Send(ctx context.Context, tok *oauth2.Token, raw []byte) error
}

// GmailSender posts to users.messages.send as "me".
type GmailSender struct {
	// Endpoint overrides the Gmail API base URL when set.
	Endpoint string
	// HTTPClient is the transport underneath the bearer token when set.
	HTTPClient *http.Client
}

func NewGmailSender() *GmailSender {
	return &GmailSender{}
}

func (s *GmailSender) Send(ctx context.Context, tok *oauth2.Token, raw []byte) error {
	if tok == nil || tok.AccessToken == "" {
		return ErrMailUnauthorized
	}

	clientCtx := ctx
	if s.HTTPClient != nil {
		clientCtx = context.WithValue(ctx, oauth2.HTTPClient, s.HTTPClient)
	}
	opts := []option.ClientOption{
		option.WithHTTPClient(oauth2.NewClient(clientCtx, oauth2.StaticTokenSource(tok))),
	}
	if s.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.Endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return errors.Wrap(err, "create gmail client")
	}

	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	if _, err := svc.Users.Messages.Send("me", msg).Context(ctx).Do(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			if apiErr.Code == http.StatusUnauthorized {
				return errors.Wrap(ErrMailUnauthorized, apiErr.Message)
			}
			return errors.Wrapf(ErrSendFailed, "gmail http %d: %s", apiErr.Code, apiErr.Message)
		}
		return errors.Wrap(ErrUpstreamUnavailable, err.Error())
	}
	return nil
}
