// Package listview implements the paged, filtered, searchable list state
// machine shared by the customers, leads, and tasks views. The three entity
// packages instantiate the generic Controller with a Definition describing
// their collection endpoint; the fetch, pagination, permission-guard, and
// mutation orchestration logic lives here exactly once.
package listview

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-crm-client/apiclient"
	"github.com/jrsteele09/go-crm-client/apierror"
	"github.com/jrsteele09/go-crm-client/authz"
)

// PageSize is fixed by the API's pagination settings.
const PageSize = 10

// State is the controller's fetch state. Parameter changes and successful
// mutations re-enter Loading; a failed fetch keeps the previously loaded
// items visible.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	// ErrPageOutOfRange is returned by GoToPage for pages outside
	// [1, TotalPages]. The request is rejected, never clamped.
	ErrPageOutOfRange = errors.New("page out of range")

	// ErrRequestInFlight is returned when a mutation is invoked while an
	// equivalent one is still pending. The second call is rejected, not
	// queued.
	ErrRequestInFlight = errors.New("request already in flight")

	// ErrNoPendingDelete is returned by ConfirmDelete when no deletion was
	// begun.
	ErrNoPendingDelete = errors.New("no delete pending")

	// ErrSearchUnsupported is returned by SetSearch when the entity's
	// endpoint has no search parameter.
	ErrSearchUnsupported = errors.New("search not supported for this resource")

	// ErrFilterUnsupported is returned by SetFilter when the entity's
	// endpoint has no filter parameter.
	ErrFilterUnsupported = errors.New("filter not supported for this resource")
)

// Definition describes one entity's collection endpoint to the generic
// controller.
type Definition[T any] struct {
	// Resource names the entity for permission checks.
	Resource authz.ResourceType

	// Path is the collection path including trailing slash, e.g.
	// "/customers/". Item paths are derived as Path + "{id}/".
	Path string

	// SearchParam is the query parameter for free-text search, empty when
	// the endpoint has none.
	SearchParam string

	// FilterParam is the query parameter for the status filter, empty when
	// the endpoint has none.
	FilterParam string

	// ID extracts an item's identifier.
	ID func(T) int64

	// AssignedTo extracts an item's owning user id, nil for unassigned
	// items. Left nil for resource types without ownership.
	AssignedTo func(T) *int64
}

// Controller owns the list state for one entity type. List order is
// whatever the server returns; the controller never re-sorts.
type Controller[T any] struct {
	def    Definition[T]
	api    *apiclient.Client
	policy *authz.Policy
	log    zerolog.Logger

	// onUnauthorized fires when any request comes back 401; the hook is
	// expected to tear down the session and steer the caller to the login
	// flow.
	onUnauthorized func()

	lock          sync.Mutex
	state         State
	items         []T
	page          int
	totalCount    int
	search        string
	filter        string
	lastErr       *apierror.Error
	creating      bool
	mutating      map[int64]bool
	pendingDelete *int64
}

type Option[T any] func(*Controller[T])

func WithLogger[T any](log zerolog.Logger) Option[T] {
	return func(c *Controller[T]) {
		c.log = log.With().Str("component", "listview").Logger()
	}
}

// WithUnauthorizedHandler installs the session-teardown hook fired on any
// 401 response.
func WithUnauthorizedHandler[T any](fn func()) Option[T] {
	return func(c *Controller[T]) {
		c.onUnauthorized = fn
	}
}

func New[T any](def Definition[T], api *apiclient.Client, policy *authz.Policy, options ...Option[T]) (*Controller[T], error) {
	if def.Path == "" {
		return nil, errors.New("[listview.New] definition path is required")
	}
	if def.ID == nil {
		return nil, errors.New("[listview.New] definition ID accessor is required")
	}
	if api == nil {
		return nil, errors.New("[listview.New] api client is required")
	}
	if policy == nil {
		return nil, errors.New("[listview.New] policy is required")
	}

	c := &Controller[T]{
		def:      def,
		api:      api,
		policy:   policy,
		log:      zerolog.Nop(),
		page:     1,
		mutating: make(map[int64]bool),
	}
	for _, opt := range options {
		opt(c)
	}
	c.log = c.log.With().Str("resource", string(def.Resource)).Logger()
	return c, nil
}

// State returns the current fetch state.
func (c *Controller[T]) State() State {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

// Items returns a copy of the current page's items.
func (c *Controller[T]) Items() []T {
	c.lock.Lock()
	defer c.lock.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Controller[T]) Page() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.page
}

func (c *Controller[T]) TotalCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.totalCount
}

// TotalPages is max(1, ceil(totalCount/PageSize)); an empty collection still
// has one (empty) page.
func (c *Controller[T]) TotalPages() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return totalPages(c.totalCount)
}

func totalPages(count int) int {
	pages := (count + PageSize - 1) / PageSize
	if pages < 1 {
		return 1
	}
	return pages
}

func (c *Controller[T]) SearchQuery() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.search
}

func (c *Controller[T]) Filter() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.filter
}

// LastError returns the classified error of the most recent failed fetch,
// nil after a successful one.
func (c *Controller[T]) LastError() *apierror.Error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.lastErr
}

// SetSearch applies the settled search text, resets to page 1, and fetches
// once. Debouncing per keystroke is the caller's concern.
func (c *Controller[T]) SetSearch(ctx context.Context, text string) error {
	if c.def.SearchParam == "" {
		return ErrSearchUnsupported
	}
	c.lock.Lock()
	c.search = text
	c.page = 1
	c.lock.Unlock()
	return c.FetchPage(ctx)
}

// SetFilter applies a status filter value (empty clears it), resets to page
// 1, and fetches once.
func (c *Controller[T]) SetFilter(ctx context.Context, value string) error {
	if c.def.FilterParam == "" {
		return ErrFilterUnsupported
	}
	c.lock.Lock()
	c.filter = value
	c.page = 1
	c.lock.Unlock()
	return c.FetchPage(ctx)
}

// GoToPage moves to page n and fetches it. Out-of-range pages are rejected
// with ErrPageOutOfRange and leave the controller untouched.
func (c *Controller[T]) GoToPage(ctx context.Context, n int) error {
	c.lock.Lock()
	if n < 1 || n > totalPages(c.totalCount) {
		c.lock.Unlock()
		return errors.Wrapf(ErrPageOutOfRange, "page %d of %d", n, totalPages(c.totalCount))
	}
	c.page = n
	c.lock.Unlock()
	return c.FetchPage(ctx)
}

// FetchPage issues one list request for the current page, search, and
// filter. On success it replaces items and count. On failure the previously
// loaded items stay visible; a 401 additionally fires the unauthorized hook
// exactly once for that request.
func (c *Controller[T]) FetchPage(ctx context.Context) error {
	c.lock.Lock()
	c.state = StateLoading
	c.lastErr = nil
	query := url.Values{}
	query.Set("page", strconv.Itoa(c.page))
	if c.def.SearchParam != "" && c.search != "" {
		query.Set(c.def.SearchParam, c.search)
	}
	if c.def.FilterParam != "" && c.filter != "" {
		query.Set(c.def.FilterParam, c.filter)
	}
	c.lock.Unlock()

	var page apiclient.Page[T]
	err := c.api.Get(ctx, c.def.Path, query, &page)

	c.lock.Lock()
	defer c.lock.Unlock()
	if err != nil {
		apiErr := apierror.From(err)
		c.state = StateFailed
		c.lastErr = apiErr
		c.log.Warn().Str("kind", string(apiErr.Kind)).Msg("list fetch failed")
		if apiErr.Kind == apierror.KindUnauthorized {
			c.fireUnauthorizedLocked()
		}
		return apiErr
	}

	// Concurrent fetches are not sequenced: the last response to arrive
	// wins, matching the API's server-authoritative ordering.
	c.items = page.Results
	c.totalCount = page.Count
	c.state = StateLoaded
	return nil
}

func (c *Controller[T]) fireUnauthorizedLocked() {
	if c.onUnauthorized == nil {
		return
	}
	fn := c.onUnauthorized
	c.lock.Unlock()
	fn()
	c.lock.Lock()
}
