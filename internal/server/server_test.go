package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"tasksync/internal/service"
	"tasksync/internal/store"
	"tasksync/internal/wire"
)

const testToken = "s3cret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fixture struct {
	store *store.Store
	srv   *Server
	http  *httptest.Server
	path  string
}

func newFixture(t *testing.T, mirror string) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.json")
	if mirror != "" {
		require.NoError(t, os.WriteFile(path, []byte(mirror), 0o644))
	}
	s := store.New(store.Options{Path: path})
	require.NoError(t, s.Load())

	srv := New(Options{Store: s, Token: testToken})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return &fixture{store: s, srv: srv, http: ts, path: path}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.http.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wire.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := wire.Decode(data)
	require.NoError(t, err)
	return env
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var e ErrorBody
	require.NoError(t, json.Unmarshal(body, &e))
	require.NotEmpty(t, e.Error.Message)
	return e.Error.Code
}

const threeTasks = `{"items":[
	{"id":"a","text":"task0","done":false,"group":null,"order":0},
	{"id":"b","text":"task1","done":false,"group":null,"order":1},
	{"id":"c","text":"task2","done":false,"group":null,"order":2}
],"ts":100}`

func TestMutationsRequireToken(t *testing.T) {
	f := newFixture(t, threeTasks)
	tests := []struct {
		name   string
		token  string
		status int
		code   string
	}{
		{"missing token", "", http.StatusUnauthorized, CodeUnauthorized},
		{"wrong token", "nope", http.StatusForbidden, CodeForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, body := f.do(t, http.MethodPost, "/api/tasks/a/toggle", tc.token, nil)
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.code, errorCode(t, body))
			require.False(t, f.store.Snapshot().Items[0].Done, "store touched by rejected call")
		})
	}
}

func TestReadsAreOpen(t *testing.T) {
	f := newFixture(t, threeTasks)

	status, body := f.do(t, http.MethodGet, "/api/tasks", "", nil)
	require.Equal(t, http.StatusOK, status)
	var items []service.Task
	require.NoError(t, json.Unmarshal(body, &items))
	require.Len(t, items, 3)

	status, body = f.do(t, http.MethodGet, "/api/snapshot", "", nil)
	require.Equal(t, http.StatusOK, status)
	env, err := wire.Decode(body)
	require.NoError(t, err)
	require.Equal(t, wire.SourcePull, env.Source)
	require.Equal(t, f.store.Snapshot().TS, env.TS)
}

func TestListEmptyStoreReportsNoData(t *testing.T) {
	f := newFixture(t, "")

	status, body := f.do(t, http.MethodGet, "/api/tasks", "", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, CodeNoData, errorCode(t, body))

	status, body = f.do(t, http.MethodGet, "/api/snapshot", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(body), `"items":[]`)
}

func TestControlCalls(t *testing.T) {
	f := newFixture(t, threeTasks)

	status, body := f.do(t, http.MethodPost, "/api/tasks", testToken, map[string]string{"text": "task3", "group": "home"})
	require.Equal(t, http.StatusCreated, status)
	var added TaskResponse
	require.NoError(t, json.Unmarshal(body, &added))
	require.Equal(t, 3, added.Task.Order)
	require.Equal(t, "home", added.Task.GroupName())

	status, body = f.do(t, http.MethodPost, "/api/tasks/toggle-next", testToken, nil)
	require.Equal(t, http.StatusOK, status)
	var next ToggleNextResponse
	require.NoError(t, json.Unmarshal(body, &next))
	require.Equal(t, "a", next.ID)

	status, body = f.do(t, http.MethodPut, "/api/tasks/b", testToken, map[string]string{"text": "renamed"})
	require.Equal(t, http.StatusOK, status)
	var edited EditResponse
	require.NoError(t, json.Unmarshal(body, &edited))
	require.Equal(t, "task1", edited.OldText)
	require.Equal(t, "renamed", edited.NewText)

	status, _ = f.do(t, http.MethodPost, "/api/select", testToken, map[string]string{"taskId": "c"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "c", f.store.Snapshot().Selected())

	status, body = f.do(t, http.MethodDelete, "/api/tasks/c", testToken, nil)
	require.Equal(t, http.StatusOK, status)
	var deleted DeleteResponse
	require.NoError(t, json.Unmarshal(body, &deleted))
	require.Equal(t, "task2", deleted.Text)
	require.Nil(t, f.store.Snapshot().SelectedTaskID)

	status, _ = f.do(t, http.MethodPost, "/api/tasks/b/move-up", testToken, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = f.do(t, http.MethodPost, "/api/tasks/b/move-down", testToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = f.do(t, http.MethodPost, "/api/tasks/reset", testToken, map[string]bool{"confirm": true})
	require.Equal(t, http.StatusOK, status)
	for _, task := range f.store.Snapshot().Items {
		require.False(t, task.Done)
	}

	status, _ = f.do(t, http.MethodPost, "/api/select", testToken, map[string]any{"taskId": nil})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, f.store.Snapshot().SelectedTaskID)
}

func TestControlCallFailures(t *testing.T) {
	f := newFixture(t, threeTasks)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"toggle unknown", http.MethodPost, "/api/tasks/zzz/toggle", nil, http.StatusNotFound, CodeNotFound},
		{"delete unknown", http.MethodDelete, "/api/tasks/zzz", nil, http.StatusNotFound, CodeNotFound},
		{"add blank", http.MethodPost, "/api/tasks", map[string]string{"text": "  "}, http.StatusBadRequest, CodeInvalidArgument},
		{"edit blank", http.MethodPut, "/api/tasks/a", map[string]string{"text": ""}, http.StatusBadRequest, CodeInvalidArgument},
		{"edit unknown", http.MethodPut, "/api/tasks/zzz", map[string]string{"text": "x"}, http.StatusNotFound, CodeNotFound},
		{"reset without confirm", http.MethodPost, "/api/tasks/reset", map[string]bool{"confirm": false}, http.StatusBadRequest, CodeInvalidArgument},
		{"reset without body", http.MethodPost, "/api/tasks/reset", nil, http.StatusBadRequest, CodeInvalidArgument},
		{"select unknown", http.MethodPost, "/api/select", map[string]string{"taskId": "zzz"}, http.StatusNotFound, CodeNotFound},
		{"move negative", http.MethodPost, "/api/tasks/a/move", map[string]int{"target": -1}, http.StatusBadRequest, CodeInvalidArgument},
		{"move non-numeric", http.MethodPost, "/api/tasks/a/move", map[string]string{"target": "two"}, http.StatusBadRequest, CodeInvalidArgument},
		{"move missing target", http.MethodPost, "/api/tasks/a/move", map[string]string{}, http.StatusBadRequest, CodeInvalidArgument},
		{"move unknown", http.MethodPost, "/api/tasks/zzz/move", map[string]int{"target": 0}, http.StatusNotFound, CodeNotFound},
		{"move-up unknown", http.MethodPost, "/api/tasks/zzz/move-up", nil, http.StatusNotFound, CodeNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, body := f.do(t, tc.method, tc.path, testToken, tc.body)
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.code, errorCode(t, body))
		})
	}

	require.Equal(t, []string{"task0", "task1", "task2"}, []string{
		f.store.Snapshot().Items[0].Text,
		f.store.Snapshot().Items[1].Text,
		f.store.Snapshot().Items[2].Text,
	})
}

func TestToggleNextWhenAllDone(t *testing.T) {
	f := newFixture(t, `{"items":[{"id":"a","text":"A","done":true,"order":0}],"ts":1}`)
	status, body := f.do(t, http.MethodPost, "/api/tasks/toggle-next", testToken, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, CodeNotFound, errorCode(t, body))
}

func TestPushChannelGetsInitialSnapshot(t *testing.T) {
	f := newFixture(t, threeTasks)
	conn := f.dial(t)

	env := readFrame(t, conn)
	require.Equal(t, wire.TypeTasksUpdated, env.Type)
	require.Len(t, env.Items, 3)
	require.Equal(t, f.store.Snapshot().TS, env.TS)
	require.Eventually(t, func() bool { return f.srv.Hub().Count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestToggleDeliveredOnceAndPersisted(t *testing.T) {
	f := newFixture(t, `{"items":[{"id":"1","text":"A","done":false,"order":0}],"ts":100}`)
	conn := f.dial(t)
	readFrame(t, conn)

	status, _ := f.do(t, http.MethodPost, "/api/tasks/1/toggle", testToken, nil)
	require.Equal(t, http.StatusOK, status)

	env := readFrame(t, conn)
	require.True(t, env.Items[0].Done)
	require.Greater(t, env.TS, int64(100))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "toggle delivered more than once")

	data, err := os.ReadFile(f.path)
	require.NoError(t, err)
	snap, err := store.DecodeMirror(data, time.Time{})
	require.NoError(t, err)
	require.True(t, snap.Items[0].Done)
	require.Greater(t, snap.TS, int64(100))
}

func TestMoveToPositionBroadcast(t *testing.T) {
	f := newFixture(t, threeTasks)
	conn := f.dial(t)
	readFrame(t, conn)

	status, _ := f.do(t, http.MethodPost, "/api/tasks/c/move", testToken, map[string]int{"target": 0})
	require.Equal(t, http.StatusOK, status)

	env := readFrame(t, conn)
	got := make([]string, len(env.Items))
	for i, task := range env.Items {
		got[i] = task.ID
		require.Equal(t, i, task.Order)
	}
	require.Equal(t, []string{"c", "a", "b"}, got)
}

func TestBroadcastReachesEveryChannel(t *testing.T) {
	f := newFixture(t, threeTasks)
	conns := []*websocket.Conn{f.dial(t), f.dial(t), f.dial(t)}
	for _, conn := range conns {
		readFrame(t, conn)
	}

	status, _ := f.do(t, http.MethodPost, "/api/tasks", testToken, map[string]string{"text": "fanout"})
	require.Equal(t, http.StatusCreated, status)

	for _, conn := range conns {
		env := readFrame(t, conn)
		require.Len(t, env.Items, 4)
	}
}

func TestClosedChannelIsPruned(t *testing.T) {
	f := newFixture(t, threeTasks)
	conn := f.dial(t)
	readFrame(t, conn)
	require.Eventually(t, func() bool { return f.srv.Hub().Count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return f.srv.Hub().Count() == 0 }, 5*time.Second, 10*time.Millisecond)

	status, _ := f.do(t, http.MethodPost, "/api/tasks/a/toggle", testToken, nil)
	require.Equal(t, http.StatusOK, status)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, threeTasks)
	status, body := f.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, status)
	var h HealthResponse
	require.NoError(t, json.Unmarshal(body, &h))
	require.True(t, h.OK)
	require.Equal(t, 3, h.Tasks)
}
