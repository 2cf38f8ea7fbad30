// internal/handlers/relationship_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/companion/internal/auth"
	"github.com/jason-s-yu/companion/internal/models"
	"github.com/jason-s-yu/companion/internal/relationship"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	api     *APIServer
	handler http.Handler
	users   *relationship.StaticDirectory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	signer, err := auth.NewSigner(0)
	require.NoError(t, err)

	users := relationship.NewStaticDirectory()
	api := &APIServer{
		Relationships: relationship.NewService(relationship.NewMemoryStore(), users, logger),
		Directory:     users,
		Signer:        signer,
		Logger:        logger,
	}
	return &testServer{api: api, handler: api.Routes(), users: users}
}

// newUser registers a user in the directory and returns their id and token.
func (ts *testServer) newUser(t *testing.T, name string) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	ts.users.Add(models.PublicUser{ID: id, Username: name})
	token, err := ts.api.Signer.Issue(id)
	require.NoError(t, err)
	return id, token
}

func (ts *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if token != "" {
		req.Header.Set("Cookie", "auth_token="+token)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func peerBody(id uuid.UUID) string {
	return `{"user_id":"` + id.String() + `"}`
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var resp statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// TestFriendFlow walks a request through acceptance and listing.
func TestFriendFlow(t *testing.T) {
	ts := newTestServer(t)
	alice, aliceToken := ts.newUser(t, "alice")
	bob, bobToken := ts.newUser(t, "bob")

	w := ts.do(t, "POST", "/friends/request", aliceToken, peerBody(bob))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, models.StatusRequested, decodeStatus(t, w).Status)

	w = ts.do(t, "GET", "/friends/list", bobToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	var view relationship.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Len(t, view.Incoming, 1)
	assert.Equal(t, "alice", view.Incoming[0].Peer.Username)
	assert.Empty(t, view.Friends)

	w = ts.do(t, "POST", "/friends/accept", bobToken, peerBody(alice))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusFriends, decodeStatus(t, w).Status)

	w = ts.do(t, "GET", "/friends/list", aliceToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	view = relationship.View{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Len(t, view.Friends, 1)
	assert.Equal(t, bob, view.Friends[0].Peer.ID)
	assert.Empty(t, view.Outgoing)

	w = ts.do(t, "POST", "/friends/remove", bobToken, peerBody(alice))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusNone, decodeStatus(t, w).Status)
}

func TestDuplicateRequestIsBenign(t *testing.T) {
	ts := newTestServer(t)
	_, aliceToken := ts.newUser(t, "alice")
	bob, _ := ts.newUser(t, "bob")

	ts.do(t, "POST", "/friends/request", aliceToken, peerBody(bob))
	w := ts.do(t, "POST", "/friends/request", aliceToken, peerBody(bob))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeStatus(t, w)
	assert.Equal(t, models.StatusRequested, resp.Status)
	assert.Equal(t, "duplicate_request", resp.Code)
}

func TestMutualRequestOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	alice, aliceToken := ts.newUser(t, "alice")
	bob, bobToken := ts.newUser(t, "bob")

	ts.do(t, "POST", "/friends/request", aliceToken, peerBody(bob))
	w := ts.do(t, "POST", "/friends/request", bobToken, peerBody(alice))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.StatusFriends, decodeStatus(t, w).Status)
}

func TestRejectAndCancel(t *testing.T) {
	ts := newTestServer(t)
	alice, aliceToken := ts.newUser(t, "alice")
	bob, bobToken := ts.newUser(t, "bob")

	ts.do(t, "POST", "/friends/request", aliceToken, peerBody(bob))
	w := ts.do(t, "POST", "/friends/reject", bobToken, peerBody(alice))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusNone, decodeStatus(t, w).Status)

	w = ts.do(t, "POST", "/friends/request", aliceToken, peerBody(bob))
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, "POST", "/friends/cancel", bobToken, peerBody(alice))
	assert.Equal(t, http.StatusForbidden, w.Code, "only alice may cancel her request")

	w = ts.do(t, "POST", "/friends/cancel", aliceToken, peerBody(bob))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusNone, decodeStatus(t, w).Status)
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	alice, aliceToken := ts.newUser(t, "alice")
	bob, bobToken := ts.newUser(t, "bob")

	cases := []struct {
		name   string
		path   string
		token  string
		body   string
		status int
		code   string
	}{
		{"self request", "/friends/request", aliceToken, peerBody(alice), http.StatusBadRequest, "invalid_self_request"},
		{"unknown user", "/friends/request", aliceToken, peerBody(uuid.New()), http.StatusNotFound, "unknown_user"},
		{"nothing to accept", "/friends/accept", bobToken, peerBody(alice), http.StatusNotFound, "no_such_request"},
		{"accept own request", "/friends/accept", aliceToken, peerBody(alice), http.StatusForbidden, "unauthorized"},
		{"not friends", "/friends/remove", aliceToken, peerBody(bob), http.StatusNotFound, "no_such_relationship"},
		{"bad id", "/friends/request", aliceToken, `{"user_id":"nope"}`, http.StatusBadRequest, "invalid_payload"},
		{"bad json", "/friends/request", aliceToken, `{`, http.StatusBadRequest, "invalid_payload"},
		{"no token", "/friends/request", "", peerBody(bob), http.StatusUnauthorized, "unauthenticated"},
		{"bad token", "/friends/request", "garbage", peerBody(bob), http.StatusUnauthorized, "unauthenticated"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.do(t, "POST", tc.path, tc.token, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Equal(t, tc.code, decodeError(t, w).Code)
		})
	}
}

func TestAlreadyFriendsConflict(t *testing.T) {
	ts := newTestServer(t)
	alice, aliceToken := ts.newUser(t, "alice")
	bob, bobToken := ts.newUser(t, "bob")
	ts.do(t, "POST", "/friends/request", aliceToken, peerBody(bob))
	ts.do(t, "POST", "/friends/accept", bobToken, peerBody(alice))

	w := ts.do(t, "POST", "/friends/request", bobToken, peerBody(alice))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_friends", decodeError(t, w).Code)
}

func TestBearerTokenAccepted(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.newUser(t, "alice")

	req := httptest.NewRequest("GET", "/friends/list", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"friends":[],"incoming":[],"outgoing":[]}`, w.Body.String())
}

func TestSearchUsers(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.newUser(t, "Margaret")
	ts.newUser(t, "Marvin")
	ts.newUser(t, "Edith")

	w := ts.do(t, "GET", "/users/search?q=mar&limit=5", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var found []models.PublicUser
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	require.Len(t, found, 2)
	assert.Equal(t, "Margaret", found[0].Username)

	w = ts.do(t, "GET", "/users/search?q=zzz", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = ts.do(t, "GET", "/users/search?limit=0", token, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsExposed(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.newUser(t, "alice")
	ts.do(t, "GET", "/friends/list", token, "")

	w := ts.do(t, "GET", "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "companion_relationship_transitions_total")
}
