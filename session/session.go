// Package session holds the authenticated context for the CRM client: the
// access/refresh token pair handed out by POST /login/ and the cached user
// identity fetched from GET /user/me/. The session survives process restarts
// via a durable store; expiry is never tracked locally and is discovered
// reactively through a 401 from the API.
package session

// Role is the coarse authorization level reported by the CRM API.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Tokens is the credential pair returned by a successful login.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Identity is the cached result of the identity call. It can be absent from
// a session: a login whose follow-up identity fetch failed still holds valid
// tokens (degraded authenticated state).
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Session is the full persisted state. UserID is a pointer so an absent
// identity is distinguishable from user id zero.
type Session struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	UserID       *int64 `json:"user_id,omitempty"`
	Username     string `json:"username,omitempty"`
	Role         Role   `json:"role,omitempty"`
}

// IsZero reports whether the session holds no data at all.
func (s Session) IsZero() bool {
	return s.AccessToken == "" && s.RefreshToken == "" &&
		s.UserID == nil && s.Username == "" && s.Role == ""
}

// apply merges a save request into the session. A nil identity leaves any
// previously stored identity fields untouched.
func (s *Session) apply(tokens Tokens, identity *Identity) {
	s.AccessToken = tokens.Access
	s.RefreshToken = tokens.Refresh
	if identity != nil {
		userID := identity.UserID
		s.UserID = &userID
		s.Username = identity.Username
		s.Role = identity.Role
	}
}

// Reader is the read side of the store, consumed by the authorization policy
// and the API client. All accessors are presence checks over stored state;
// none of them validate token signature or expiry.
type Reader interface {
	AccessToken() string
	RefreshToken() string
	UserID() (int64, bool)
	Username() string
	Role() Role
	IsAuthenticated() bool
}

// Store is written only by the session lifecycle (login/logout) and read by
// everything else. Clear is idempotent: all fields are removed as a unit.
type Store interface {
	Reader
	Save(tokens Tokens, identity *Identity) error
	Clear() error
}
