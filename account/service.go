// Package account implements the session lifecycle: login, logout, and
// registration against the CRM API. Login populates the session store;
// logout destroys it; registration never touches the store at all (the
// caller moves on to the login flow).
package account

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-crm-client/apiclient"
	"github.com/jrsteele09/go-crm-client/apierror"
	"github.com/jrsteele09/go-crm-client/session"
)

const (
	loginPath    = "/login/"
	identityPath = "/user/me/"
	registerPath = "/register/"
)

// Service orchestrates the authentication endpoints.
type Service struct {
	api   *apiclient.Client
	store session.Store
	log   zerolog.Logger
}

type Option func(*Service)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) {
		s.log = log.With().Str("component", "account").Logger()
	}
}

func New(api *apiclient.Client, store session.Store, options ...Option) (*Service, error) {
	if api == nil {
		return nil, errors.New("[account.New] api client is required")
	}
	if store == nil {
		return nil, errors.New("[account.New] session store is required")
	}

	s := &Service{
		api:   api,
		store: store,
		log:   zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type identityResponse struct {
	ID       int64        `json:"id"`
	Username string       `json:"username"`
	Role     session.Role `json:"role"`
}

// Login exchanges credentials for a token pair and stores it, then fetches
// the user identity as a best effort. A failed identity fetch does not fail
// the login: the session stays authenticated with no cached identity, and
// permission checks fail closed until the next successful login. A 401 from
// the login endpoint is reported as InvalidCredentials; nothing is retried.
func (s *Service) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)

	fields := map[string]string{}
	if username == "" {
		fields["username"] = "username is required"
	}
	if password == "" {
		fields["password"] = "password is required"
	}
	if len(fields) > 0 {
		return apierror.NewValidation(fields)
	}

	var tokens session.Tokens
	if err := s.api.Post(ctx, loginPath, credentials{Username: username, Password: password}, &tokens); err != nil {
		if apierror.IsKind(err, apierror.KindUnauthorized) {
			return apierror.New(apierror.KindInvalidCredentials, "invalid username or password")
		}
		return errors.Wrap(err, "[Service.Login] login request")
	}

	if err := s.store.Save(tokens, nil); err != nil {
		return errors.Wrap(err, "[Service.Login] store tokens")
	}

	var me identityResponse
	if err := s.api.Get(ctx, identityPath, nil, &me); err != nil {
		s.log.Warn().Err(err).Msg("identity fetch failed, continuing with tokens only")
		return nil
	}

	identity := session.Identity{UserID: me.ID, Username: me.Username, Role: me.Role}
	if err := s.store.Save(tokens, &identity); err != nil {
		return errors.Wrap(err, "[Service.Login] store identity")
	}

	s.log.Info().Str("username", me.Username).Str("role", string(me.Role)).Msg("logged in")
	return nil
}

// Logout clears the session store unconditionally. It is a purely local
// operation and is idempotent.
func (s *Service) Logout() error {
	if err := s.store.Clear(); err != nil {
		return errors.Wrap(err, "[Service.Logout] clear session")
	}
	return nil
}
