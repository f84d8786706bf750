package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghica/cliver/internal/db"
	"github.com/danghica/cliver/internal/driver"
	"github.com/danghica/cliver/internal/eventlog"
	"github.com/danghica/cliver/internal/model"
	"github.com/danghica/cliver/internal/repository"
	"github.com/danghica/cliver/internal/session"
	"github.com/danghica/cliver/internal/supervisor"
	"github.com/danghica/cliver/internal/testutil"
	"github.com/danghica/cliver/pkg/client"
)

func TestMain(m *testing.M) {
	testutil.RunFakeToolIfRequested()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testServer struct {
	*httptest.Server
	registry *session.Registry
	events   *repository.EventRepository
	recorder *eventlog.Logger
}

func (s *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

func newTestServer(t *testing.T, cfg session.Config) *testServer {
	t.Helper()

	sup, err := supervisor.New(supervisor.Options{
		Bin:    testutil.FakeToolBinary(),
		Env:    testutil.FakeToolEnviron(testutil.ModeServe),
		Driver: driver.NewCjpmDriver(nil),
	}, nil)
	require.NoError(t, err)

	testDB, err := db.NewTestDB()
	require.NoError(t, err)
	sink := eventlog.NewDBSink(testDB)
	recorder := eventlog.New(nil, sink)

	registry := session.NewRegistry(sup, recorder, cfg, nil)
	srv := httptest.NewServer(NewRouter(registry, sink.Repository(), nil))

	t.Cleanup(func() {
		srv.Close()
		registry.Close()
		recorder.Close()
	})

	return &testServer{Server: srv, registry: registry, events: sink.Repository(), recorder: recorder}
}

func dial(t *testing.T, url string) *client.Client {
	t.Helper()
	c, err := client.Dial(context.Background(), url, client.Options{DialTimeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func next(t *testing.T, c *client.Client) *client.Message {
	t.Helper()
	msg, err := c.Next(context.Background(), 5*time.Second)
	require.NoError(t, err)
	return msg
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestScenarios(t *testing.T) {
	srv := newTestServer(t, session.Config{IdleTimeout: time.Minute})

	results := client.RunScenarios(context.Background(), srv.wsURL(),
		client.Options{DialTimeout: 2 * time.Second},
		client.ScenarioConfig{ReplyTimeout: 5 * time.Second, QuietWindow: 300 * time.Millisecond},
		client.DefaultScenarios())

	require.Len(t, results, 3)
	for _, r := range results {
		assert.NoError(t, r.Err, r.Name)
	}
}

func TestRootEndpoint(t *testing.T) {
	srv := newTestServer(t, session.Config{})

	c := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http")+"/")
	require.NoError(t, c.SendLine("Student new Alice 1001"))
	msg := next(t, c)
	require.NotNil(t, msg.Stdout)
	assert.Equal(t, "ref:1", *msg.Stdout)
}

func TestExitClosesOnce(t *testing.T) {
	srv := newTestServer(t, session.Config{})
	c := dial(t, srv.wsURL())

	require.NoError(t, c.SendLine("demo"))
	msg := next(t, c)
	require.NotNil(t, msg.Stdout)
	assert.Equal(t, "Alice, 1001\nBob, 1002\nCarol, 1003", *msg.Stdout)

	require.NoError(t, c.SendLine("exit"))
	msg = next(t, c)
	assert.True(t, msg.SessionClosed)
	assert.Nil(t, msg.Stdout)

	_, err := c.Next(context.Background(), 2*time.Second)
	assert.ErrorIs(t, err, client.ErrClosed)
}

func TestIdleClose(t *testing.T) {
	srv := newTestServer(t, session.Config{IdleTimeout: 200 * time.Millisecond})
	c := dial(t, srv.wsURL())

	require.NoError(t, c.SendLine("help"))
	next(t, c)

	msg := next(t, c)
	assert.True(t, msg.SessionClosed)
	require.NotNil(t, msg.Stdout)
	assert.Equal(t, session.IdleMessage, *msg.Stdout)
}

func TestHealthAndSessionAPI(t *testing.T) {
	srv := newTestServer(t, session.Config{})

	var health map[string]interface{}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/health", &health))
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 0, health["sessions"])

	c := dial(t, srv.wsURL())
	require.NoError(t, c.SendLine("help"))
	next(t, c)

	var list []SessionResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/sessions", &list))
	require.Len(t, list, 1)
	assert.Equal(t, string(model.SessionStateActive), list[0].State)
	assert.Equal(t, string(model.TransportModePipe), list[0].Mode)
	require.NotNil(t, list[0].PID)
	id := list[0].ID

	var got SessionResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/sessions/"+id, &got))
	assert.Equal(t, id, got.ID)

	var errResp ErrorResponse
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/sessions/missing", &errResp))
	assert.Equal(t, "SESSION_NOT_FOUND", errResp.Error.Code)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/"+id, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	msg := next(t, c)
	assert.True(t, msg.SessionClosed)
	require.NotNil(t, msg.Stdout)
	assert.Equal(t, session.TerminatedMessage, *msg.Stdout)

	require.NoError(t, srv.recorder.Sync(context.Background()))
	var events []model.Event
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/sessions/"+id+"/events", &events))
	types := make([]model.EventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, model.EventOpen, types[0])
	assert.Contains(t, types, model.EventInput)
	assert.Contains(t, types, model.EventOutput)
	assert.Equal(t, model.EventClose, types[len(types)-1])
}

func TestEventsDisabled(t *testing.T) {
	registry := session.NewRegistry(&stubSpawner{}, nil, session.Config{}, nil)
	defer registry.Close()

	w := httptest.NewRecorder()
	NewRouter(registry, nil, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions/x/events", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "EVENT_LOG_DISABLED")
}

func TestCORSPreflight(t *testing.T) {
	registry := session.NewRegistry(&stubSpawner{}, nil, session.Config{}, nil)
	defer registry.Close()

	w := httptest.NewRecorder()
	NewRouter(registry, nil, nil).ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/sessions", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

type stubSpawner struct{}

func (stubSpawner) Spawn(context.Context, supervisor.Callbacks) (supervisor.Process, error) {
	return nil, os.ErrNotExist
}
