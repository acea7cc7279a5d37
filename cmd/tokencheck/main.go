// Command tokencheck reports the Google OAuth token state stored for one profile and can
// force a refresh to confirm the refresh token still works.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/quickapply/backend/internal/config"
	"github.com/quickapply/backend/internal/models"
	"github.com/quickapply/backend/internal/services"
)

type options struct {
	email   string
	refresh bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("tokencheck", flag.ContinueOnError)
	fs.StringVar(&opts.email, "email", "", "profile email to inspect")
	fs.BoolVar(&opts.refresh, "refresh", false, "perform a refresh-token grant and store the result")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.email == "" && fs.NArg() > 0 {
		opts.email = fs.Arg(0)
	}
	if opts.email == "" {
		return opts, errors.New("-email is required")
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backend, err := services.OpenBackend(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoTLS, cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer backend.Close(context.Background())

	var provider services.OAuthProvider
	if opts.refresh {
		oauth := services.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURL())
		if !oauth.Configured() {
			log.Fatal("-refresh needs CLIENT_ID and CLIENT_SECRET")
		}
		provider = oauth
	}

	if err := run(ctx, os.Stdout, backend.Profiles, provider, opts); err != nil {
		log.Fatal(err)
	}
}

// run prints the token report; provider is only used with -refresh.
func run(ctx context.Context, out io.Writer, store services.ProfileStore, provider services.OAuthProvider, opts options) error {
	prof, err := store.FindByEmail(ctx, models.NormalizeEmail(opts.email))
	if err != nil {
		return errors.Wrapf(err, "lookup %s", opts.email)
	}

	fmt.Fprintf(out, "Email:         %s\n", prof.Email)
	fmt.Fprintf(out, "Full name:     %s\n", prof.FullName)
	fmt.Fprintf(out, "Google ID:     %s\n", orNotSet(prof.GoogleID))
	fmt.Fprintf(out, "Access token:  %s\n", describeToken(prof.GoogleAccessToken))
	fmt.Fprintf(out, "Refresh token: %s\n", describeToken(prof.GoogleRefreshToken))
	if prof.GoogleTokenExpiry.IsZero() {
		fmt.Fprintf(out, "Expiry:        unknown\n")
	} else {
		fmt.Fprintf(out, "Expiry:        %s\n", prof.GoogleTokenExpiry.Format(time.RFC3339))
	}

	if prof.GoogleRefreshToken == "" {
		fmt.Fprintln(out, "\nNo refresh token stored. Log out, sign in with Google again and accept the consent screen, then save the profile.")
		if opts.refresh {
			return errors.New("cannot refresh without a refresh token")
		}
		return nil
	}
	if !opts.refresh {
		fmt.Fprintln(out, "\nRefresh token present.")
		return nil
	}

	tok, err := provider.Refresh(ctx, prof.GoogleRefreshToken)
	if err != nil {
		return errors.WithMessage(err, "refresh failed, the user must sign in again")
	}
	tokens := models.OAuthTokens{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken, Expiry: tok.Expiry}
	if err := store.UpdateTokens(ctx, prof.IDHex(), tokens); err != nil {
		return errors.WithMessage(err, "store refreshed token")
	}
	fmt.Fprintf(out, "\nRefreshed. New access token %s\n", describeToken(tok.AccessToken))
	return nil
}

func describeToken(tok string) string {
	if tok == "" {
		return "missing"
	}
	preview := tok
	if len(preview) > 8 {
		preview = preview[:8]
	}
	return fmt.Sprintf("present (%d chars, %s...)", len(tok), preview)
}

func orNotSet(s string) string {
	if s == "" {
		return "not set"
	}
	return s
}
