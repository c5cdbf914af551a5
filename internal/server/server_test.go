package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/roomies/internal/database"
	"github.com/dukerupert/roomies/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(db, Options{
		TokenSecret:   []byte("test-secret"),
		JoinRateLimit: 3,
		Policy:        store.DefaultCallPolicy,
	}, logger)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 && data[0] == '{' {
		json.Unmarshal(data, &out)
	}
	return resp, out
}

func register(t *testing.T, ts *httptest.Server, name string) (string, int64) {
	t.Helper()
	resp, body := do(t, ts, http.MethodPost, "/api/people", "", `{"display_name":"`+name+`"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s = %d", name, resp.StatusCode)
	}
	person := body["person"].(map[string]any)
	return body["token"].(string), int64(person["id"].(float64))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, body := do(t, ts, http.MethodGet, "/health", "", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", resp.StatusCode, body)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := do(t, ts, http.MethodGet, "/api/me", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestHouseholdFlow(t *testing.T) {
	ts := newTestServer(t)
	aliceToken, aliceID := register(t, ts, "Alice")
	bobToken, _ := register(t, ts, "Bob")

	resp, house := do(t, ts, http.MethodPost, "/api/households", aliceToken, `{"name":"Flat 3"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create household = %d", resp.StatusCode)
	}
	code := house["invite_code"].(string)
	hid := int64(house["id"].(float64))

	resp, _ = do(t, ts, http.MethodPost, "/api/households/join", bobToken, `{"invite_code":"`+strings.ToLower(code)+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join = %d", resp.StatusCode)
	}

	path := "/api/households/" + strconv.FormatInt(hid, 10) + "/chores"
	resp, c := do(t, ts, http.MethodPost, path, bobToken,
		`{"name":"Take out trash","due_date":"2025-07-02","repeat_mask":1,"assignee_ids":[`+strconv.FormatInt(aliceID, 10)+`]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create chore = %d", resp.StatusCode)
	}
	choreID := int64(c["id"].(float64))

	resp, done := do(t, ts, http.MethodPost, "/api/chores/"+strconv.FormatInt(choreID, 10)+"/complete", aliceToken, "")
	if resp.StatusCode != http.StatusOK || done["status"] != "completed" {
		t.Errorf("complete = %d %v", resp.StatusCode, done)
	}

	resp, _ = do(t, ts, http.MethodPost, "/api/chores/"+strconv.FormatInt(choreID, 10)+"/pass", aliceToken, "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("pass completed chore = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	resp, v := do(t, ts, http.MethodGet, "/api/households/"+strconv.FormatInt(hid, 10)+"/view?status=completed", bobToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("view = %d", resp.StatusCode)
	}
	if members := v["members"].([]any); len(members) != 2 {
		t.Errorf("view members = %d, want 2", len(members))
	}
}

func TestJoinIsRateLimited(t *testing.T) {
	ts := newTestServer(t)
	token, _ := register(t, ts, "Mallory")

	var last int
	for range 4 {
		resp, _ := do(t, ts, http.MethodPost, "/api/households/join", token, `{"invite_code":"ZZZZZZ"}`)
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("fourth join = %d, want %d", last, http.StatusTooManyRequests)
	}
}

func TestWebSocketReceivesHouseholdEvents(t *testing.T) {
	ts := newTestServer(t)
	token, _ := register(t, ts, "Alice")
	resp, house := do(t, ts, http.MethodPost, "/api/households", token, `{"name":"Flat 3"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create household = %d", resp.StatusCode)
	}
	hid := strconv.FormatInt(int64(house["id"].(float64)), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws?token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	// Wait for the hub to register the connection before publishing.
	for {
		_, health := do(t, ts, http.MethodGet, "/health", "", "")
		if health["clients"] == float64(1) {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, _ = do(t, ts, http.MethodPost, "/api/households/"+hid+"/machines", token, `{"name":"Washer"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create machine = %d", resp.StatusCode)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg["type"] != "machine_created" || msg["household_id"] != float64(house["id"].(float64)) {
		t.Errorf("message = %v", msg)
	}
}
