// Package tests composes full soketi nodes into an in-process cluster
// and exercises the Pusher API surface across them.
package tests

import (
	"bytes"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	pusher "github.com/pusher/pusher-http-go/v5"

	"github.com/atymic/soketi/internal/adapter"
	"github.com/atymic/soketi/internal/apps"
	"github.com/atymic/soketi/internal/core/domain"
	"github.com/atymic/soketi/internal/namespace"
	"github.com/atymic/soketi/internal/server/httpserver"
	"github.com/atymic/soketi/internal/server/httpserver/handler"
	"github.com/atymic/soketi/internal/telemetry/metric"
	"github.com/atymic/soketi/internal/transport"
)

const (
	testAppID     = "app-id"
	testAppKey    = "app-key"
	testAppSecret = "app-secret"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingConn stands in for a live client connection.
type recordingConn struct {
	mu        sync.Mutex
	messages  [][]byte
	closed    bool
	closeCode int
}

func (c *recordingConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, append([]byte(nil), data...))
	return nil
}

func (c *recordingConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCode = code
	return nil
}

func (c *recordingConn) received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *recordingConn) lastMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return ""
	}
	return string(c.messages[len(c.messages)-1])
}

func (c *recordingConn) closedWith() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.closeCode
}

// node is one complete soketi process: namespaces, cluster adapter and
// the signed HTTP API, wired the same way cmd/soketi-server does it.
type node struct {
	name     string
	registry *namespace.Registry
	adapter  *adapter.HorizontalAdapter
	server   *httptest.Server
}

func startNode(t *testing.T, hub *transport.Hub, name string, timeout time.Duration) *node {
	t.Helper()

	mgr, err := apps.NewMemoryManager([]apps.App{
		{ID: testAppID, Key: testAppKey, Secret: testAppSecret},
	})
	if err != nil {
		t.Fatalf("NewMemoryManager failed: %v", err)
	}

	metrics := metric.NewRegistry()
	registry := namespace.NewRegistry()
	local := adapter.NewLocalAdapter(registry)
	horizontal := adapter.NewHorizontalAdapter(local, hub.NewBus(), adapter.HorizontalConfig{
		NodeID:         name,
		RequestTimeout: timeout,
		Logger:         discardLogger(),
		Metrics:        metrics,
	})
	t.Cleanup(func() { horizontal.Close() })

	limiters := apps.NewLimiterRegistry()
	h := handler.New(horizontal, mgr, limiters, discardLogger())
	router := httpserver.NewRouter(h, &httpserver.RouterConfig{
		Apps:     mgr,
		Limiters: limiters,
		Logger:   discardLogger(),
		Metrics:  metrics,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &node{
		name:     name,
		registry: registry,
		adapter:  horizontal,
		server:   srv,
	}
}

// startCluster brings up size full nodes on one in-memory hub.
func startCluster(t *testing.T, size int, timeout time.Duration) []*node {
	t.Helper()

	hub := transport.NewHub()
	nodes := make([]*node, 0, size)
	for i := 0; i < size; i++ {
		nodes = append(nodes, startNode(t, hub, fmt.Sprintf("node-%d", i+1), timeout))
	}
	return nodes
}

func (n *node) addSocket(t *testing.T, socketID, userID string) *recordingConn {
	t.Helper()
	conn := &recordingConn{}
	ws := namespace.NewWebSocket(socketID, conn)
	ws.UserID = userID
	if !n.registry.Namespace(testAppID).AddSocket(ws) {
		t.Fatalf("socket %s already registered on %s", socketID, n.name)
	}
	return conn
}

func (n *node) subscribe(socketID, channel string, member *pusher.MemberData) {
	n.registry.Namespace(testAppID).AddToChannel(socketID, channel, member)
}

// signedURL builds a request URL carrying a valid Pusher signature.
func signedURL(t *testing.T, method, base, path string, query url.Values, body []byte) string {
	t.Helper()
	if query == nil {
		query = url.Values{}
	}
	query.Set("auth_key", testAppKey)
	query.Set("auth_timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	query.Set("auth_version", "1.0")

	params := make(map[string]string, len(query))
	for k := range query {
		params[strings.ToLower(k)] = query.Get(k)
	}
	if len(body) > 0 {
		digest := md5.Sum(body)
		bodyMD5 := hex.EncodeToString(digest[:])
		query.Set("body_md5", bodyMD5)
		params["body_md5"] = bodyMD5
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	toSign := strings.ToUpper(method) + "\n" + path + "\n" + strings.Join(pairs, "&")

	mac := hmac.New(sha256.New, []byte(testAppSecret))
	mac.Write([]byte(toSign))
	query.Set("auth_signature", hex.EncodeToString(mac.Sum(nil)))

	return base + path + "?" + query.Encode()
}

func getJSON(t *testing.T, u string, out any) int {
	t.Helper()
	resp, err := http.Get(u)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("invalid JSON %q: %v", raw, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, u string, body []byte) int {
	t.Helper()
	resp, err := http.Post(u, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestClusterChannelCounts(t *testing.T) {
	nodes := startCluster(t, 3, 0)
	a, b, c := nodes[0], nodes[1], nodes[2]

	b.addSocket(t, "10.1", "")
	b.addSocket(t, "10.2", "")
	b.subscribe("10.1", "chat", nil)
	b.subscribe("10.2", "chat", nil)

	c.addSocket(t, "20.1", "")
	c.addSocket(t, "20.2", "")
	c.subscribe("20.1", "chat", nil)
	c.subscribe("20.2", "news", nil)

	// Node A holds no sockets; its answers come entirely from peers.
	var index handler.ChannelsResponse
	status := getJSON(t, signedURL(t, http.MethodGet, a.server.URL, "/apps/"+testAppID+"/channels", nil, nil), &index)
	if status != http.StatusOK {
		t.Fatalf("channels status = %d, want 200", status)
	}
	if got := index.Channels["chat"].SubscriptionCount; got != 3 {
		t.Errorf("chat subscription_count = %d, want 3", got)
	}
	if got := index.Channels["news"].SubscriptionCount; got != 1 {
		t.Errorf("news subscription_count = %d, want 1", got)
	}

	// The holder of part of the channel gets the same totals.
	var show handler.ChannelAttributes
	status = getJSON(t, signedURL(t, http.MethodGet, b.server.URL, "/apps/"+testAppID+"/channels/chat", nil, nil), &show)
	if status != http.StatusOK {
		t.Fatalf("channel show status = %d, want 200", status)
	}
	if !show.Occupied {
		t.Error("chat should be occupied")
	}
	if show.SubscriptionCount != 3 {
		t.Errorf("chat subscription_count from node B = %d, want 3", show.SubscriptionCount)
	}
}

func TestClusterPresenceMembersUnion(t *testing.T) {
	nodes := startCluster(t, 3, 0)
	a, b, c := nodes[0], nodes[1], nodes[2]

	b.addSocket(t, "10.1", "m1")
	b.subscribe("10.1", "presence-room", &pusher.MemberData{UserID: "m1"})

	c.addSocket(t, "20.1", "m2")
	c.subscribe("20.1", "presence-room", &pusher.MemberData{UserID: "m2"})

	queryUsers := func() []string {
		var users handler.ChannelUsersResponse
		status := getJSON(t, signedURL(t, http.MethodGet, a.server.URL, "/apps/"+testAppID+"/channels/presence-room/users", nil, nil), &users)
		if status != http.StatusOK {
			t.Fatalf("users status = %d, want 200", status)
		}
		ids := make([]string, 0, len(users.Users))
		for _, u := range users.Users {
			ids = append(ids, u.ID)
		}
		return ids
	}

	// Node A has no local members; the result is the union of both
	// peers' reports.
	ids := queryUsers()
	if len(ids) != 2 || ids[0] != "m1" || ids[1] != "m2" {
		t.Fatalf("users = %v, want [m1 m2]", ids)
	}

	// A second round trip works identically: the first query left no
	// pending state behind.
	ids = queryUsers()
	if len(ids) != 2 {
		t.Fatalf("second query users = %v, want 2 entries", ids)
	}
}

func TestClusterEventBroadcast(t *testing.T) {
	nodes := startCluster(t, 3, 0)
	a, b, c := nodes[0], nodes[1], nodes[2]

	connB := b.addSocket(t, "10.1", "")
	b.subscribe("10.1", "orders", nil)

	connC := c.addSocket(t, "20.1", "")
	c.subscribe("20.1", "orders", nil)

	bystander := c.addSocket(t, "20.2", "")
	c.subscribe("20.2", "news", nil)

	body := []byte(`{"name":"order-created","channel":"orders","data":"{\"id\":42}"}`)
	status := postJSON(t, signedURL(t, http.MethodPost, a.server.URL, "/apps/"+testAppID+"/events", nil, body), body)
	if status != http.StatusOK {
		t.Fatalf("events status = %d, want 200", status)
	}

	// Delivery to peers rides the broadcast channel and lands
	// asynchronously.
	waitFor(t, 2*time.Second, func() bool {
		return connB.received() == 1 && connC.received() == 1
	}, "remote subscribers did not receive the event")

	for name, conn := range map[string]*recordingConn{"B": connB, "C": connC} {
		msg := conn.lastMessage()
		if !strings.Contains(msg, `"order-created"`) || !strings.Contains(msg, `"orders"`) {
			t.Errorf("node %s message = %s, want event and channel present", name, msg)
		}
	}

	time.Sleep(50 * time.Millisecond)
	if bystander.received() != 0 {
		t.Error("socket outside the channel received the event")
	}
}

func TestClusterTerminateUserConnections(t *testing.T) {
	nodes := startCluster(t, 3, 0)
	a, b, c := nodes[0], nodes[1], nodes[2]

	u1b := b.addSocket(t, "10.1", "u1")
	u1c := c.addSocket(t, "20.1", "u1")
	u2c := c.addSocket(t, "20.2", "u2")

	status := postJSON(t, signedURL(t, http.MethodPost, a.server.URL, "/apps/"+testAppID+"/users/u1/terminate_connections", nil, nil), nil)
	if status != http.StatusOK {
		t.Fatalf("terminate status = %d, want 200", status)
	}

	waitFor(t, 2*time.Second, func() bool {
		closedB, _ := u1b.closedWith()
		closedC, _ := u1c.closedWith()
		return closedB && closedC
	}, "u1 sockets were not closed across the cluster")

	if _, code := u1b.closedWith(); code != namespace.CloseCodeAppTerminated {
		t.Errorf("close code = %d, want %d", code, namespace.CloseCodeAppTerminated)
	}
	if closed, _ := u2c.closedWith(); closed {
		t.Error("u2 socket should be untouched")
	}
}

func TestClusterSilentPeer(t *testing.T) {
	hub := transport.NewHub()
	a := startNode(t, hub, "node-1", 300*time.Millisecond)
	b := startNode(t, hub, "node-2", 300*time.Millisecond)

	// A third hub member that never answers: the cluster expects three
	// responders but only two ever reply.
	silent := hub.NewBus()
	t.Cleanup(func() { silent.Close() })

	b.addSocket(t, "10.1", "")
	b.subscribe("10.1", "c", nil)

	t.Run("existence query times out despite a true answer", func(t *testing.T) {
		// Node B already reported the socket as present, but the
		// aggregation waits for the full responder count.
		start := time.Now()
		_, err := a.adapter.IsInChannel(testAppID, "c", "10.1", false)
		if !errors.Is(err, domain.ErrRequestTimeout) {
			t.Fatalf("IsInChannel error = %v, want request timeout", err)
		}
		if elapsed := time.Since(start); elapsed < 250*time.Millisecond {
			t.Errorf("query failed after %v, want it to wait out the deadline", elapsed)
		}
	})

	t.Run("HTTP query surfaces 504", func(t *testing.T) {
		var errBody handler.ErrorResponse
		status := getJSON(t, signedURL(t, http.MethodGet, a.server.URL, "/apps/"+testAppID+"/channels", nil, nil), &errBody)
		if status != http.StatusGatewayTimeout {
			t.Fatalf("status = %d, want 504", status)
		}
		if errBody.Code != domain.ErrRequestTimeout.Code {
			t.Errorf("error code = %q, want %q", errBody.Code, domain.ErrRequestTimeout.Code)
		}
	})

	t.Run("queries recover once the silent member leaves", func(t *testing.T) {
		silent.Close()

		var show handler.ChannelAttributes
		status := getJSON(t, signedURL(t, http.MethodGet, a.server.URL, "/apps/"+testAppID+"/channels/c", nil, nil), &show)
		if status != http.StatusOK {
			t.Fatalf("status = %d, want 200 after the member left", status)
		}
		if show.SubscriptionCount != 1 {
			t.Errorf("subscription_count = %d, want 1", show.SubscriptionCount)
		}
	})
}
