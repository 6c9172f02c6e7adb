package listview_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-crm-client/apiclient"
	"github.com/jrsteele09/go-crm-client/apierror"
	"github.com/jrsteele09/go-crm-client/authz"
	"github.com/jrsteele09/go-crm-client/internal/utils"
	"github.com/jrsteele09/go-crm-client/listview"
	"github.com/jrsteele09/go-crm-client/session"
	"github.com/jrsteele09/go-crm-client/session/storefakes"
)

// widget is a minimal owned entity for exercising the generic controller.
type widget struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	AssignedTo *int64 `json:"assigned_to"`
}

func widgetDef(resource authz.ResourceType) listview.Definition[widget] {
	def := listview.Definition[widget]{
		Resource:    resource,
		Path:        "/widgets/",
		SearchParam: "search",
		FilterParam: "status",
		ID:          func(w widget) int64 { return w.ID },
	}
	if resource == authz.ResourceTask {
		def.AssignedTo = func(w widget) *int64 { return w.AssignedTo }
	}
	return def
}

// listServer scripts the collection endpoint. Every response serves the
// configured items and count until the script is changed.
type listServer struct {
	lock       sync.Mutex
	items      []widget
	count      int
	listStatus int
	mutStatus  int
	mutBody    string

	listCalls int
	mutCalls  int
	lastQuery map[string]string
}

func (ls *listServer) set(items []widget, count int) {
	ls.lock.Lock()
	defer ls.lock.Unlock()
	ls.items = items
	ls.count = count
}

func (ls *listServer) failList(status int) {
	ls.lock.Lock()
	defer ls.lock.Unlock()
	ls.listStatus = status
}

func (ls *listServer) failMutations(status int, body string) {
	ls.lock.Lock()
	defer ls.lock.Unlock()
	ls.mutStatus = status
	ls.mutBody = body
}

func (ls *listServer) queries() map[string]string {
	ls.lock.Lock()
	defer ls.lock.Unlock()
	return ls.lastQuery
}

func (ls *listServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ls.lock.Lock()
		defer ls.lock.Unlock()
		w.Header().Set("Content-Type", "application/json")

		if r.Method == http.MethodGet {
			ls.listCalls++
			ls.lastQuery = map[string]string{}
			for key, values := range r.URL.Query() {
				ls.lastQuery[key] = values[0]
			}
			if ls.listStatus != 0 {
				w.WriteHeader(ls.listStatus)
				w.Write([]byte(`{"detail":"list failed"}`))
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"results": ls.items, "count": ls.count})
			return
		}

		ls.mutCalls++
		if ls.mutStatus != 0 {
			w.WriteHeader(ls.mutStatus)
			w.Write([]byte(ls.mutBody))
			return
		}
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.Write([]byte(`{}`))
		}
	})
}

type ctlFixture struct {
	server       *listServer
	store        *storefakes.FakeStore
	controller   *listview.Controller[widget]
	unauthorized int
}

func setupController(t *testing.T, resource authz.ResourceType, sess session.Session) *ctlFixture {
	t.Helper()

	ls := &listServer{}
	server := httptest.NewServer(ls.handler())
	t.Cleanup(server.Close)

	store := storefakes.NewFakeStore()
	store.Seed(sess)

	f := &ctlFixture{server: ls, store: store}
	api := apiclient.New(server.URL, store)
	controller, err := listview.New(widgetDef(resource), api, authz.New(store),
		listview.WithUnauthorizedHandler[widget](func() {
			f.unauthorized++
			_ = store.Clear()
		}),
	)
	require.NoError(t, err)
	f.controller = controller
	return f
}

func adminSess() session.Session {
	return session.Session{AccessToken: "t", UserID: utils.Ptr(int64(1)), Role: session.RoleAdmin}
}

func userSess(id int64) session.Session {
	return session.Session{AccessToken: "t", UserID: utils.Ptr(id), Role: session.RoleUser}
}

func widgets(ids ...int64) []widget {
	out := make([]widget, 0, len(ids))
	for _, id := range ids {
		out = append(out, widget{ID: id, Name: fmt.Sprintf("widget-%d", id)})
	}
	return out
}

func TestController_FetchPage(t *testing.T) {
	t.Run("loads items and count", func(t *testing.T) {
		f := setupController(t, authz.ResourceCustomer, adminSess())
		f.server.set(widgets(1, 2, 3), 25)

		require.NoError(t, f.controller.FetchPage(context.Background()))
		require.Equal(t, listview.StateLoaded, f.controller.State())
		require.Len(t, f.controller.Items(), 3)
		require.Equal(t, 25, f.controller.TotalCount())
		require.Equal(t, 3, f.controller.TotalPages())
		require.Nil(t, f.controller.LastError())
	})

	t.Run("failure preserves previously loaded items", func(t *testing.T) {
		f := setupController(t, authz.ResourceCustomer, adminSess())
		f.server.set(widgets(1, 2), 2)
		require.NoError(t, f.controller.FetchPage(context.Background()))

		f.server.failList(http.StatusInternalServerError)
		err := f.controller.FetchPage(context.Background())
		require.True(t, apierror.IsKind(err, apierror.KindFetchFailed))
		require.Equal(t, listview.StateFailed, f.controller.State())

		// Stale-but-visible: the last good page stays.
		require.Len(t, f.controller.Items(), 2)
		require.NotNil(t, f.controller.LastError())
	})

	t.Run("401 clears session and fires hook once", func(t *testing.T) {
		f := setupController(t, authz.ResourceLead, adminSess())
		f.server.failList(http.StatusUnauthorized)

		err := f.controller.FetchPage(context.Background())
		require.True(t, apierror.IsKind(err, apierror.KindUnauthorized))
		require.Equal(t, 1, f.unauthorized)
		require.False(t, f.store.IsAuthenticated())
	})
}

func TestController_Pagination(t *testing.T) {
	f := setupController(t, authz.ResourceCustomer, adminSess())
	f.server.set(widgets(1, 2, 3, 4, 5, 6, 7, 8, 9, 10), 25)
	require.NoError(t, f.controller.FetchPage(context.Background()))
	require.Equal(t, 3, f.controller.TotalPages())

	t.Run("page past the end is rejected", func(t *testing.T) {
		err := f.controller.GoToPage(context.Background(), 4)
		require.ErrorIs(t, err, listview.ErrPageOutOfRange)
		require.Equal(t, 1, f.controller.Page())
	})

	t.Run("page zero is rejected", func(t *testing.T) {
		err := f.controller.GoToPage(context.Background(), 0)
		require.ErrorIs(t, err, listview.ErrPageOutOfRange)
	})

	t.Run("last page succeeds", func(t *testing.T) {
		require.NoError(t, f.controller.GoToPage(context.Background(), 3))
		require.Equal(t, 3, f.controller.Page())
		require.Equal(t, "3", f.server.queries()["page"])
	})

	t.Run("empty collection still has one page", func(t *testing.T) {
		g := setupController(t, authz.ResourceCustomer, adminSess())
		g.server.set(nil, 0)
		require.NoError(t, g.controller.FetchPage(context.Background()))
		require.Equal(t, 1, g.controller.TotalPages())
		require.NoError(t, g.controller.GoToPage(context.Background(), 1))
	})

	t.Run("exact multiple of page size", func(t *testing.T) {
		g := setupController(t, authz.ResourceCustomer, adminSess())
		g.server.set(widgets(1), 30)
		require.NoError(t, g.controller.FetchPage(context.Background()))
		require.Equal(t, 3, g.controller.TotalPages())
	})
}

func TestController_SearchAndFilter(t *testing.T) {
	f := setupController(t, authz.ResourceLead, adminSess())
	f.server.set(widgets(1, 2, 3, 4, 5, 6, 7, 8, 9, 10), 25)
	require.NoError(t, f.controller.FetchPage(context.Background()))
	require.NoError(t, f.controller.GoToPage(context.Background(), 2))

	t.Run("search resets to page one", func(t *testing.T) {
		require.NoError(t, f.controller.SetSearch(context.Background(), "acme"))
		require.Equal(t, 1, f.controller.Page())
		query := f.server.queries()
		require.Equal(t, "acme", query["search"])
		require.Equal(t, "1", query["page"])
	})

	t.Run("filter resets to page one", func(t *testing.T) {
		require.NoError(t, f.controller.GoToPage(context.Background(), 2))
		require.NoError(t, f.controller.SetFilter(context.Background(), "Open"))
		require.Equal(t, 1, f.controller.Page())
		require.Equal(t, "Open", f.server.queries()["status"])
	})

	t.Run("clearing the filter omits the parameter", func(t *testing.T) {
		require.NoError(t, f.controller.SetFilter(context.Background(), ""))
		_, present := f.server.queries()["status"]
		require.False(t, present)
	})

	t.Run("unsupported search is rejected", func(t *testing.T) {
		def := widgetDef(authz.ResourceTask)
		def.SearchParam = ""
		api := apiclient.New("http://unused", storefakes.NewFakeStore())
		c, err := listview.New(def, api, authz.New(storefakes.NewFakeStore()))
		require.NoError(t, err)
		require.ErrorIs(t, c.SetSearch(context.Background(), "x"), listview.ErrSearchUnsupported)
	})
}

func TestController_Create(t *testing.T) {
	t.Run("refetches after success", func(t *testing.T) {
		f := setupController(t, authz.ResourceCustomer, adminSess())
		f.server.set(widgets(1), 1)

		require.NoError(t, f.controller.Create(context.Background(), map[string]string{"name": "n"}))
		require.Equal(t, listview.StateLoaded, f.controller.State())
		require.Equal(t, 1, f.server.listCalls)
		require.Equal(t, 1, f.server.mutCalls)
	})

	t.Run("non-admin creating a customer is refused locally", func(t *testing.T) {
		f := setupController(t, authz.ResourceCustomer, userSess(7))

		err := f.controller.Create(context.Background(), map[string]string{"name": "n"})
		require.True(t, apierror.IsKind(err, apierror.KindForbidden))
		require.Equal(t, 0, f.server.mutCalls)
	})

	t.Run("non-admin may create tasks", func(t *testing.T) {
		f := setupController(t, authz.ResourceTask, userSess(7))
		f.server.set(nil, 0)
		require.NoError(t, f.controller.Create(context.Background(), map[string]string{"title": "t"}))
	})

	t.Run("failure surfaces first field error and keeps list state", func(t *testing.T) {
		f := setupController(t, authz.ResourceCustomer, adminSess())
		f.server.set(widgets(1, 2), 2)
		require.NoError(t, f.controller.FetchPage(context.Background()))

		f.server.failMutations(http.StatusBadRequest, `{"email":["invalid email"]}`)
		err := f.controller.Create(context.Background(), map[string]string{})
		require.True(t, apierror.IsKind(err, apierror.KindValidationFailed))
		require.Equal(t, "invalid email", apierror.From(err).UserMessage())
		require.Len(t, f.controller.Items(), 2)
		require.Equal(t, listview.StateLoaded, f.controller.State())
	})
}

func TestController_Update(t *testing.T) {
	t.Run("non-admin may update own task only", func(t *testing.T) {
		f := setupController(t, authz.ResourceTask, userSess(7))
		f.server.set([]widget{
			{ID: 1, AssignedTo: utils.Ptr(int64(7))},
			{ID: 2, AssignedTo: utils.Ptr(int64(9))},
		}, 2)
		require.NoError(t, f.controller.FetchPage(context.Background()))

		require.NoError(t, f.controller.Update(context.Background(), 1, map[string]bool{"completed": true}))

		err := f.controller.Update(context.Background(), 2, map[string]bool{"completed": true})
		require.True(t, apierror.IsKind(err, apierror.KindForbidden))
	})

	t.Run("unknown item fails closed for non-admin", func(t *testing.T) {
		f := setupController(t, authz.ResourceTask, userSess(7))
		f.server.set(nil, 0)
		require.NoError(t, f.controller.FetchPage(context.Background()))

		err := f.controller.Update(context.Background(), 99, map[string]bool{"completed": true})
		require.True(t, apierror.IsKind(err, apierror.KindForbidden))
	})

	t.Run("deleted item reports NotFound and keeps state", func(t *testing.T) {
		f := setupController(t, authz.ResourceCustomer, adminSess())
		f.server.set(widgets(1), 1)
		require.NoError(t, f.controller.FetchPage(context.Background()))

		f.server.failMutations(http.StatusNotFound, `{"detail":"Not found."}`)
		err := f.controller.Update(context.Background(), 1, map[string]string{"name": "x"})
		require.True(t, apierror.IsKind(err, apierror.KindNotFound))
		require.Len(t, f.controller.Items(), 1)
	})
}

func TestController_TwoStepDelete(t *testing.T) {
	t.Run("confirm without begin is rejected", func(t *testing.T) {
		f := setupController(t, authz.ResourceCustomer, adminSess())
		err := f.controller.ConfirmDelete(context.Background())
		require.ErrorIs(t, err, listview.ErrNoPendingDelete)
	})

	t.Run("begin then confirm deletes and refetches", func(t *testing.T) {
		f := setupController(t, authz.ResourceCustomer, adminSess())
		f.server.set(widgets(1, 2), 2)
		require.NoError(t, f.controller.FetchPage(context.Background()))

		require.NoError(t, f.controller.BeginDelete(1))
		id, pending := f.controller.PendingDelete()
		require.True(t, pending)
		require.Equal(t, int64(1), id)

		require.NoError(t, f.controller.ConfirmDelete(context.Background()))
		_, pending = f.controller.PendingDelete()
		require.False(t, pending)
		require.Equal(t, 1, f.server.mutCalls)

		// Confirming again is a no-op: the pending mark was consumed.
		require.ErrorIs(t, f.controller.ConfirmDelete(context.Background()), listview.ErrNoPendingDelete)
	})

	t.Run("cancel abandons the pending delete", func(t *testing.T) {
		f := setupController(t, authz.ResourceCustomer, adminSess())
		f.server.set(widgets(1), 1)
		require.NoError(t, f.controller.FetchPage(context.Background()))

		require.NoError(t, f.controller.BeginDelete(1))
		f.controller.CancelDelete()
		require.ErrorIs(t, f.controller.ConfirmDelete(context.Background()), listview.ErrNoPendingDelete)
		require.Equal(t, 0, f.server.mutCalls)
	})

	t.Run("non-admin cannot begin deleting a customer", func(t *testing.T) {
		f := setupController(t, authz.ResourceCustomer, userSess(7))
		err := f.controller.BeginDelete(1)
		require.True(t, apierror.IsKind(err, apierror.KindForbidden))
	})
}

func TestController_MutationReentrancy(t *testing.T) {
	// A slow in-flight update causes a concurrent second update on the same
	// item to be rejected rather than queued.
	release := make(chan struct{})
	started := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/widgets/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		w.Write([]byte(`{"results":[{"id":1}],"count":1}`))
	})
	mux.HandleFunc("/widgets/1/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		close(started)
		<-release
		w.Write([]byte(`{}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := storefakes.NewFakeStore()
	store.Seed(adminSess())
	api := apiclient.New(server.URL, store)
	controller, err := listview.New(widgetDef(authz.ResourceCustomer), api, authz.New(store))
	require.NoError(t, err)
	require.NoError(t, controller.FetchPage(context.Background()))

	done := make(chan error, 1)
	go func() {
		done <- controller.Update(context.Background(), 1, map[string]string{"name": "a"})
	}()

	<-started
	err = controller.Update(context.Background(), 1, map[string]string{"name": "b"})
	require.ErrorIs(t, err, listview.ErrRequestInFlight)

	close(release)
	require.NoError(t, <-done)
}
