package handlers

import (
	"net/http"
	"testing"

	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/pairing"
	"github.com/lovetree/lovetree/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateConnectionReusesOpenCode(t *testing.T) {
	env := newTestEnv(t)
	u := env.store.addUser("ann", models.RoleUser)

	w := env.do(http.MethodPost, "/connections", u, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first models.Connection
	decodeBody(t, w, &first)
	assert.Len(t, first.ConnectionCode, pairing.CodeLength)

	w = env.do(http.MethodPost, "/connections", u, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var again models.Connection
	decodeBody(t, w, &again)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.ConnectionCode, again.ConnectionCode)
}

func TestCreateConnectionRetriesCodeCollisions(t *testing.T) {
	env := newTestEnv(t)
	u := env.store.addUser("ben", models.RoleUser)

	env.store.codeFailures = 2
	w := env.do(http.MethodPost, "/connections", u, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	other := env.store.addUser("cal", models.RoleUser)
	env.store.codeFailures = codeAttempts
	w = env.do(http.MethodPost, "/connections", other, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPair(t *testing.T) {
	env := newTestEnv(t)
	owner := env.store.addUser("dee", models.RoleUser)
	joiner := env.store.addUser("eli", models.RoleUser)
	third := env.store.addUser("flo", models.RoleUser)
	conn := env.store.addConnection(owner.ID, nil)
	conn.ConnectionCode = "QWERTY"

	w := env.do(http.MethodPost, "/connections/pair", joiner, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/connections/pair", joiner, map[string]string{"connectionCode": "ZZZZZZ"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, "/connections/pair", owner, map[string]string{"connectionCode": "QWERTY"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/connections/pair", joiner, map[string]string{"connectionCode": "qwerty"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var paired models.Connection
	decodeBody(t, w, &paired)
	require.NotNil(t, paired.PairedWithID)
	assert.Equal(t, joiner.ID, *paired.PairedWithID)
	require.NotNil(t, paired.Tree)
	assert.Equal(t, tree.StartLevel, paired.Tree.GrowthLevel)

	w = env.do(http.MethodPost, "/connections/pair", third, map[string]string{"connectionCode": "QWERTY"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "connection code already used", errorOf(t, w))
}

func TestActiveConnection(t *testing.T) {
	env := newTestEnv(t)
	owner, partner, conn := env.couple()
	loner := env.store.addUser("gil", models.RoleUser)

	w := env.do(http.MethodGet, "/users/"+partner.ID.String()+"/active-connection", owner, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodGet, "/users/"+owner.ID.String()+"/active-connection", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Connection *models.Connection `json:"connection"`
	}
	decodeBody(t, w, &body)
	require.NotNil(t, body.Connection)
	assert.Equal(t, conn.ID, body.Connection.ID)

	w = env.do(http.MethodGet, "/users/"+loner.ID.String()+"/active-connection", loner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"connection": null}`, w.Body.String())
}

func TestConnectionRoutesHideForeignConnections(t *testing.T) {
	env := newTestEnv(t)
	_, _, conn := env.couple()
	stranger := env.store.addUser("hex", models.RoleUser)

	for _, path := range []string{
		"/connections/" + conn.ID.String() + "/tree",
		"/connections/" + conn.ID.String() + "/memories",
		"/connections/" + conn.ID.String() + "/special-days",
		"/connections/" + conn.ID.String() + "/chat",
		"/connections/not-a-uuid/memories",
	} {
		w := env.do(http.MethodGet, path, stranger, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, "connection not found or access denied", errorOf(t, w), path)
	}
}

func TestWaterTreeDefaultsToMemory(t *testing.T) {
	env := newTestEnv(t)
	owner, _, conn := env.couple()
	path := "/connections/" + conn.ID.String() + "/tree/water"

	w := env.do(http.MethodPost, path, owner, "{not json")
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodPost, path, owner, map[string]string{"actionType": "time_capsule"})
	require.Equal(t, http.StatusOK, w.Code)

	var res tree.Result
	decodeBody(t, w, &res)
	assert.Equal(t, tree.XPFor(tree.ActionTimeCapsule), res.XPAdded)
	assert.Equal(t, []tree.Action{tree.ActionMemory, tree.ActionTimeCapsule}, env.store.awarded())
}

func TestCreateMemory(t *testing.T) {
	env := newTestEnv(t)
	owner, _, conn := env.couple()
	path := "/connections/" + conn.ID.String() + "/memories"

	w := env.do(http.MethodPost, path, owner, map[string]string{"title": "Trip", "date": "2024-05-01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, path, owner, map[string]string{"title": "Trip", "description": "Beach", "date": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, path, owner, map[string]string{"title": "Trip", "description": "Beach", "date": "2024-05-01"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var body struct {
		models.Memory
		TreeUpdate *tree.Result `json:"treeUpdate"`
	}
	decodeBody(t, w, &body)
	assert.Equal(t, "Trip", body.Title)
	assert.Nil(t, body.ImageURL)
	require.NotNil(t, body.TreeUpdate)
	assert.Equal(t, tree.XPFor(tree.ActionMemory), body.TreeUpdate.XPAdded)
}
