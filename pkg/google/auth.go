// Package google provides thin, context-aware adapters over the Google
// Sheets and Gmail APIs authenticated with a service account that
// impersonates a workspace user.
package google

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// Option configures a Google API adapter.
type Option func(*settings)

type settings struct {
	credentialsJSON []byte
	subject         string
	endpoint        string
	httpClient      *http.Client
}

// WithCredentialsJSON sets the service account key (JSON) used to mint tokens.
func WithCredentialsJSON(b []byte) Option {
	return func(s *settings) {
		s.credentialsJSON = b
	}
}

// WithSubject sets the workspace user the service account acts as.
func WithSubject(email string) Option {
	return func(s *settings) {
		s.subject = email
	}
}

// WithEndpoint overrides the API base URL.
func WithEndpoint(url string) Option {
	return func(s *settings) {
		s.endpoint = url
	}
}

// WithHTTPClient overrides the HTTP client. Requests sent through it are
// not authenticated by the adapter.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) {
		s.httpClient = hc
	}
}

// TokenSource builds a delegated token source from a service account key.
// An empty subject yields tokens for the service account itself.
func TokenSource(ctx context.Context, credentialsJSON []byte, subject string, scopes ...string) (oauth2.TokenSource, error) {
	if len(credentialsJSON) == 0 {
		return nil, eris.New("google: credentials are required")
	}
	cfg, err := goauth.JWTConfigFromJSON(credentialsJSON, scopes...)
	if err != nil {
		return nil, eris.Wrap(err, "google: parse service account credentials")
	}
	cfg.Subject = subject
	return cfg.TokenSource(ctx), nil
}

func clientOptions(ctx context.Context, scopes []string, opts []Option) ([]option.ClientOption, error) {
	s := &settings{}
	for _, o := range opts {
		o(s)
	}

	var out []option.ClientOption
	if s.endpoint != "" {
		out = append(out, option.WithEndpoint(s.endpoint))
	}
	if s.httpClient != nil {
		return append(out, option.WithHTTPClient(s.httpClient)), nil
	}

	ts, err := TokenSource(ctx, s.credentialsJSON, s.subject, scopes...)
	if err != nil {
		return nil, err
	}
	return append(out, option.WithTokenSource(ts)), nil
}
