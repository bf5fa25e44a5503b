package board

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tinyland-inc/mediassist/pkg/backend"
	"github.com/tinyland-inc/mediassist/pkg/bus"
)

var leakOpts = []goleak.Option{
	goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
	goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
}

type update struct {
	Resource string
	ID       string
	Status   string
}

// fakeBoard serves the dashboard and update endpoints from in-memory state.
type fakeBoard struct {
	mu         sync.Mutex
	title      map[string]string
	records    map[string][]backend.Record
	fetches    atomic.Int32
	failFetch  atomic.Bool
	failUpdate atomic.Bool
	updates    []update
	paths      []string

	// when set, update requests signal updateSeen and wait for updateGate
	updateSeen chan struct{}
	updateGate chan struct{}
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{
		title: map[string]string{
			"doctor":   "Dr. Rao's Schedule",
			"lab":      "Lab Queue",
			"pharmacy": "Pharmacy Orders",
		},
		records: map[string][]backend.Record{
			"doctor": {
				{ID: "1", Title: "Asha K", Subtitle: "Follow-up", Date: "2026-03-10", Time: "10:00", Status: StatusScheduled},
				{ID: "2", Title: "Vikram P", Subtitle: "Consult", Date: "2026-03-10", Time: "10:30", Status: StatusCancelled},
			},
			"lab": {
				{ID: "7", Title: "CBC", Subtitle: "PID-482", Status: StatusPending},
			},
			"pharmacy": {},
		},
	}
}

func (f *fakeBoard) setRecords(role string, recs []backend.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[role] = recs
}

func (f *fakeBoard) Updates() []update {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]update(nil), f.updates...)
}

func (f *fakeBoard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/appointments/dashboard/"):
		f.fetches.Add(1)
		if f.failFetch.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		role := strings.Split(strings.TrimPrefix(r.URL.Path, "/appointments/dashboard/"), "/")[0]
		if role == "doctor" && strings.HasSuffix(r.URL.Path, "/unknown") {
			http.Error(w, "no such doctor", http.StatusNotFound)
			return
		}
		f.mu.Lock()
		resp := backend.DashboardResponse{Role: f.title[role], Records: f.records[role]}
		f.mu.Unlock()
		json.NewEncoder(w).Encode(resp)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/appointments/update/"):
		if f.failUpdate.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		if f.updateGate != nil {
			f.updateSeen <- struct{}{}
			<-f.updateGate
		}
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/appointments/update/"), "/")
		var body struct {
			Status string `json:"status"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.updates = append(f.updates, update{Resource: parts[0], ID: parts[1], Status: body.Status})
		f.mu.Unlock()
		w.Write([]byte(`{"ok":true}`))
	default:
		http.NotFound(w, r)
	}
}

// newTestEngine registers the leak check first so it runs after the engine
// and server cleanups.
func newTestEngine(t *testing.T, fb *fakeBoard, opts ...Option) *Engine {
	t.Helper()
	t.Cleanup(func() { goleak.VerifyNone(t, leakOpts...) })

	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	client, err := backend.NewBoardClient(backend.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	e := NewEngine(client, opts...)
	t.Cleanup(e.Close)
	return e
}

func TestLogin_DoctorRequiresScope(t *testing.T) {
	fb := newFakeBoard()
	e := newTestEngine(t, fb)

	for _, scope := range []string{"", "   "} {
		err := e.Login(context.Background(), "doctor", scope)
		assert.ErrorIs(t, err, ErrScopeRequired)
	}
	err := e.Login(context.Background(), "doctor", "../lab")
	assert.ErrorIs(t, err, ErrScopeRequired)

	assert.Zero(t, fb.fetches.Load())
	assert.False(t, e.Authenticated())
}

func TestLogin_UnknownRole(t *testing.T) {
	fb := newFakeBoard()
	e := newTestEngine(t, fb)

	assert.ErrorIs(t, e.Login(context.Background(), "nurse", ""), ErrUnknownRole)
	assert.Zero(t, fb.fetches.Load())
}

func TestLogin_Success(t *testing.T) {
	fb := newFakeBoard()

	var (
		mu     sync.Mutex
		events []bus.Event
	)
	e := newTestEngine(t, fb, WithPollInterval(time.Hour), WithNotifier(bus.NotifierFunc(func(ev bus.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})))

	require.NoError(t, e.Login(context.Background(), "doctor", " D-12 "))
	assert.True(t, e.Authenticated())

	sess, ok := e.Session()
	require.True(t, ok)
	assert.Equal(t, Session{Role: RoleDoctor, ScopeID: "D-12", Title: "Dr. Rao's Schedule"}, sess)
	assert.Len(t, e.Records(), 2)

	fb.mu.Lock()
	assert.Equal(t, "GET /appointments/dashboard/doctor/D-12", fb.paths[0])
	fb.mu.Unlock()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, bus.KindSession, events[0].Kind)
	assert.Equal(t, bus.SourceBoard, events[0].Source)
	assert.Equal(t, "Active Records: 2", events[1].Text)
}

func TestLogin_FailureStaysUnauthenticated(t *testing.T) {
	fb := newFakeBoard()
	e := newTestEngine(t, fb)

	err := e.Login(context.Background(), "doctor", "unknown")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.True(t, backend.IsStatus(err, http.StatusNotFound))
	assert.False(t, e.Authenticated())
	assert.Empty(t, e.Records())
}

func TestLogin_LabIgnoresScope(t *testing.T) {
	fb := newFakeBoard()
	e := newTestEngine(t, fb)

	require.NoError(t, e.Login(context.Background(), "lab", "ignored"))
	sess, _ := e.Session()
	assert.Empty(t, sess.ScopeID)
	assert.Equal(t, KindLabTest, KindForRole(sess.Role))
}

func TestRefresh_ReplacesCollection(t *testing.T) {
	fb := newFakeBoard()
	e := newTestEngine(t, fb, WithPollInterval(time.Hour))

	require.NoError(t, e.Login(context.Background(), "doctor", "D-12"))

	replacement := []backend.Record{{ID: "9", Title: "New Patient", Status: StatusScheduled}}
	fb.setRecords("doctor", replacement)
	require.NoError(t, e.Refresh(context.Background()))

	if diff := cmp.Diff(replacement, e.Records()); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestRefresh_FailureKeepsState(t *testing.T) {
	fb := newFakeBoard()
	e := newTestEngine(t, fb, WithPollInterval(time.Hour))

	require.NoError(t, e.Login(context.Background(), "doctor", "D-12"))
	before := e.Records()

	fb.failFetch.Store(true)
	assert.Error(t, e.Refresh(context.Background()))

	if diff := cmp.Diff(before, e.Records()); diff != "" {
		t.Errorf("records changed after failed refresh (-want +got):\n%s", diff)
	}
	assert.True(t, e.Authenticated())
}

func TestRefresh_NotAuthenticated(t *testing.T) {
	e := newTestEngine(t, newFakeBoard())
	assert.ErrorIs(t, e.Refresh(context.Background()), ErrNotAuthenticated)
}

func TestToggleStatus_OptimisticAndPersisted(t *testing.T) {
	fb := newFakeBoard()
	e := newTestEngine(t, fb, WithPollInterval(time.Hour))
	require.NoError(t, e.Login(context.Background(), "doctor", "D-12"))

	require.NoError(t, e.ToggleStatus(context.Background(), "1", KindAppointment))
	require.NoError(t, e.ToggleStatus(context.Background(), "2", KindAppointment))

	recs := e.Records()
	assert.Equal(t, StatusCancelled, recs[0].Status)
	assert.Equal(t, StatusScheduled, recs[1].Status)

	assert.Equal(t, []update{
		{Resource: "appointment", ID: "1", Status: StatusCancelled},
		{Resource: "appointment", ID: "2", Status: StatusScheduled},
	}, fb.Updates())
}

func TestToggleStatus_LocalChangeBeforeResponse(t *testing.T) {
	fb := newFakeBoard()
	fb.updateSeen = make(chan struct{}, 1)
	fb.updateGate = make(chan struct{})
	release := sync.OnceFunc(func() { close(fb.updateGate) })

	e := newTestEngine(t, fb, WithPollInterval(time.Hour))
	t.Cleanup(release)
	require.NoError(t, e.Login(context.Background(), "lab", ""))

	done := make(chan error, 1)
	go func() { done <- e.ToggleStatus(context.Background(), "7", KindLabTest) }()

	select {
	case <-fb.updateSeen:
	case <-time.After(2 * time.Second):
		t.Fatal("update request never reached the backend")
	}

	assert.Equal(t, StatusCompleted, e.Records()[0].Status)
	assert.Empty(t, fb.Updates())

	release()
	require.NoError(t, <-done)
	assert.Equal(t, []update{{Resource: "lab", ID: "7", Status: StatusCompleted}}, fb.Updates())
}

func TestToggleStatus_FailureDoesNotRollBack(t *testing.T) {
	fb := newFakeBoard()
	fb.failUpdate.Store(true)

	var notices []string
	var mu sync.Mutex
	e := newTestEngine(t, fb, WithPollInterval(time.Hour), WithNotifier(bus.NotifierFunc(func(ev bus.Event) {
		if ev.Kind == bus.KindNotice {
			mu.Lock()
			notices = append(notices, ev.Text)
			mu.Unlock()
		}
	})))
	require.NoError(t, e.Login(context.Background(), "lab", ""))

	err := e.ToggleStatus(context.Background(), "7", KindLabTest)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpdateFailed)
	assert.Equal(t, StatusCompleted, e.Records()[0].Status)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{NoticeUpdateFailed}, notices)
}

func TestToggleStatus_LocalRejections(t *testing.T) {
	fb := newFakeBoard()
	e := newTestEngine(t, fb, WithPollInterval(time.Hour))

	assert.ErrorIs(t, e.ToggleStatus(context.Background(), "1", KindAppointment), ErrNotAuthenticated)

	require.NoError(t, e.Login(context.Background(), "doctor", "D-12"))
	assert.ErrorIs(t, e.ToggleStatus(context.Background(), "404", KindAppointment), ErrRecordNotFound)
	assert.ErrorIs(t, e.ToggleStatus(context.Background(), "1", "Radiology"), ErrUnknownKind)
	assert.Empty(t, fb.Updates())
}

func TestPolling_RefreshesAndStopsOnLogout(t *testing.T) {
	fb := newFakeBoard()
	e := newTestEngine(t, fb, WithPollInterval(10*time.Millisecond))

	require.NoError(t, e.Login(context.Background(), "pharmacy", ""))
	assert.Empty(t, e.Records())

	fb.setRecords("pharmacy", []backend.Record{{ID: "p1", Title: "Amoxicillin", Status: StatusProcessing}})
	require.Eventually(t, func() bool { return len(e.Records()) == 1 }, 2*time.Second, 5*time.Millisecond)

	e.Logout()
	assert.False(t, e.Authenticated())
	assert.Empty(t, e.Records())

	after := fb.fetches.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, fb.fetches.Load(), "no polling after logout")
}

func TestPolling_FailureIsSilent(t *testing.T) {
	fb := newFakeBoard()
	e := newTestEngine(t, fb, WithPollInterval(10*time.Millisecond))

	require.NoError(t, e.Login(context.Background(), "doctor", "D-12"))
	fb.failFetch.Store(true)
	start := fb.fetches.Load()
	require.Eventually(t, func() bool { return fb.fetches.Load() > start+2 }, 2*time.Second, 5*time.Millisecond)

	assert.True(t, e.Authenticated())
	assert.Len(t, e.Records(), 2)
}

func TestRelogin_ReplacesSession(t *testing.T) {
	fb := newFakeBoard()
	e := newTestEngine(t, fb, WithPollInterval(10*time.Millisecond))

	require.NoError(t, e.Login(context.Background(), "doctor", "D-12"))
	require.NoError(t, e.Login(context.Background(), "lab", ""))

	snap := e.Snapshot()
	assert.Equal(t, RoleLab, snap.Role)
	assert.Equal(t, "Lab Queue", snap.Title)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, RecordID("7"), snap.Records[0].ID)
}

func TestRefresh_DiscardedAfterSessionEnds(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	release := make(chan struct{})
	stub := &blockingClient{
		first:   &backend.DashboardResponse{Role: "Lab Queue", Records: []backend.Record{{ID: "1", Status: StatusPending}}},
		release: release,
	}
	e := NewEngine(stub, WithPollInterval(time.Hour))
	defer e.Close()

	require.NoError(t, e.Login(context.Background(), "lab", ""))

	done := make(chan error, 1)
	go func() { done <- e.Refresh(context.Background()) }()
	require.Eventually(t, func() bool { return stub.calls.Load() == 2 }, time.Second, time.Millisecond)

	e.Logout()
	close(release)
	require.NoError(t, <-done)

	assert.False(t, e.Authenticated())
	assert.Empty(t, e.Records())
}

// blockingClient answers the first dashboard call immediately and holds
// every later one until release is closed.
type blockingClient struct {
	first   *backend.DashboardResponse
	release chan struct{}
	calls   atomic.Int32
}

func (c *blockingClient) Dashboard(ctx context.Context, role, scopeID string) (*backend.DashboardResponse, error) {
	if c.calls.Add(1) == 1 {
		return c.first, nil
	}
	<-c.release
	return &backend.DashboardResponse{Role: "Lab Queue", Records: []backend.Record{{ID: "stale"}}}, nil
}

func (c *blockingClient) UpdateStatus(ctx context.Context, resource string, id backend.RecordID, status string) error {
	return nil
}
