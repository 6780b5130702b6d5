package pairs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlog "gorm.io/gorm/logger"

	"github.com/charleshuang3/medipair/internal/gormw"
	"github.com/charleshuang3/medipair/internal/identity"
	"github.com/charleshuang3/medipair/internal/models"
	"github.com/charleshuang3/medipair/internal/pairing"
	"github.com/charleshuang3/medipair/internal/storage"
)

type testEnv struct {
	router *gin.Engine
	db     *gormw.DB

	// user is injected into the gin context in place of the auth
	// middleware; tests flip it between requests.
	user *identity.User
}

func setupHandlerTest(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gormw.Open(&gormw.Config{
		LogLevel: gormlog.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())

	pairSvc := pairing.NewPairService(db)
	invSvc := pairing.NewInvitationService(db, pairSvc, "https://medipair.example.com")

	env := &testEnv{db: db}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if env.user != nil {
			identity.SetCurrentUser(c, env.user)
		}
		c.Next()
	})
	NewHandler(invSvc, pairSvc).RegisterHandlers(r.Group("/api/v1"), nil)
	env.router = r
	return env
}

func (e *testEnv) seedUser(t *testing.T, id, name, email, role string) *identity.User {
	t.Helper()
	require.NoError(t, storage.UpsertUser(e.db, &models.User{
		ID:          id,
		DisplayName: name,
		Email:       email,
		Role:        role,
	}))
	return &identity.User{ID: id, DisplayName: name, Email: email, Role: role}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeJSON(t, w)
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "body has no error object: %s", w.Body.String())
	code, _ := errObj["code"].(string)
	return code
}

func TestCreateInvitationEndpoint(t *testing.T) {
	env := setupHandlerTest(t)
	env.user = env.seedUser(t, "u-patient", "Pat", "p@x.com", models.RolePatient)

	w := env.do(t, http.MethodPost, "/api/v1/invitations", gin.H{
		"invitee_email": "s@x.com",
		"target_role":   models.RoleSupporter,
		"message":       "hi",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decodeJSON(t, w)
	inv := body["invitation"].(map[string]any)
	assert.Equal(t, "pending", inv["status"])
	assert.Equal(t, "s@x.com", inv["invitee_email"])
	code := inv["code"].(string)
	assert.Len(t, code, 8)
	assert.Equal(t, "https://medipair.example.com/invitation?code="+code, body["invitation_url"])
	assert.Equal(t, "invitation:"+code+":s@x.com", body["qr_payload"])
}

func TestCreateInvitationEndpoint_Errors(t *testing.T) {
	env := setupHandlerTest(t)
	patient := env.seedUser(t, "u-patient", "Pat", "p@x.com", models.RolePatient)

	t.Run("missing body fields", func(t *testing.T) {
		env.user = patient
		w := env.do(t, http.MethodPost, "/api/v1/invitations", gin.H{"invitee_email": "s@x.com"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, pairing.CodeValidationFailed, errorCode(t, w))
	})

	t.Run("unauthenticated", func(t *testing.T) {
		env.user = nil
		w := env.do(t, http.MethodPost, "/api/v1/invitations", gin.H{
			"invitee_email": "s@x.com",
			"target_role":   models.RoleSupporter,
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, pairing.CodeUnauthorized, errorCode(t, w))
	})

	t.Run("self invitation", func(t *testing.T) {
		env.user = patient
		w := env.do(t, http.MethodPost, "/api/v1/invitations", gin.H{
			"invitee_email": "p@x.com",
			"target_role":   models.RoleSupporter,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, pairing.CodeSelfInvitation, errorCode(t, w))
	})
}

func TestFindByCodeEndpoint(t *testing.T) {
	env := setupHandlerTest(t)
	patient := env.seedUser(t, "u-patient", "Pat", "p@x.com", models.RolePatient)
	supporter := env.seedUser(t, "u-supporter", "Sam", "s@x.com", models.RoleSupporter)
	stranger := env.seedUser(t, "u-stranger", "Stan", "x@x.com", models.RoleSupporter)

	env.user = patient
	w := env.do(t, http.MethodPost, "/api/v1/invitations", gin.H{
		"invitee_email": "s@x.com",
		"target_role":   models.RoleSupporter,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	code := decodeJSON(t, w)["invitation"].(map[string]any)["code"].(string)

	t.Run("invitee reads it", func(t *testing.T) {
		env.user = supporter
		w := env.do(t, http.MethodGet, "/api/v1/invitations/"+code, nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeJSON(t, w)
		assert.Equal(t, true, body["is_valid"])
		inviter := body["inviter"].(map[string]any)
		assert.Equal(t, "Pat", inviter["name"])
	})

	t.Run("inviter reads it", func(t *testing.T) {
		env.user = patient
		w := env.do(t, http.MethodGet, "/api/v1/invitations/"+code, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("third party cannot see it", func(t *testing.T) {
		env.user = stranger
		w := env.do(t, http.MethodGet, "/api/v1/invitations/"+code, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, pairing.CodeInvitationNotFound, errorCode(t, w))
	})

	t.Run("malformed code", func(t *testing.T) {
		env.user = supporter
		w := env.do(t, http.MethodGet, "/api/v1/invitations/bogus", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRespondAndPairEndpoints(t *testing.T) {
	env := setupHandlerTest(t)
	patient := env.seedUser(t, "u-patient", "Pat", "p@x.com", models.RolePatient)
	supporter := env.seedUser(t, "u-supporter", "Sam", "s@x.com", models.RoleSupporter)

	env.user = patient
	w := env.do(t, http.MethodPost, "/api/v1/invitations", gin.H{
		"invitee_email": "s@x.com",
		"target_role":   models.RoleSupporter,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	code := decodeJSON(t, w)["invitation"].(map[string]any)["code"].(string)

	// Accept as the invitee.
	env.user = supporter
	w = env.do(t, http.MethodPost, "/api/v1/invitations/"+code+"/respond", gin.H{"action": "accept"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeJSON(t, w)
	assert.Equal(t, "accepted", body["invitation"].(map[string]any)["status"])
	pairID := body["pair_id"].(string)
	require.NotEmpty(t, pairID)

	// Both sides see the pair.
	for _, u := range []*identity.User{patient, supporter} {
		env.user = u
		w = env.do(t, http.MethodGet, "/api/v1/pair", nil)
		require.Equal(t, http.StatusOK, w.Code)
		pair := decodeJSON(t, w)["pair"].(map[string]any)
		assert.Equal(t, pairID, pair["id"])
		assert.Equal(t, "Pat", pair["patient_name"])
		assert.Equal(t, "Sam", pair["supporter_name"])
	}

	// A second response conflicts.
	w = env.do(t, http.MethodPost, "/api/v1/invitations/"+code+"/respond", gin.H{"action": "accept"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, pairing.CodeInvitationResponded, errorCode(t, w))

	// Only participants can terminate.
	env.user = env.seedUser(t, "u-stranger", "Stan", "x@x.com", models.RoleSupporter)
	w = env.do(t, http.MethodDelete, "/api/v1/pairs/"+pairID, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	env.user = patient
	w = env.do(t, http.MethodDelete, "/api/v1/pairs/"+pairID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/pair", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decodeJSON(t, w)["pair"])
}

func TestListAndStatsEndpoints(t *testing.T) {
	env := setupHandlerTest(t)
	patient := env.seedUser(t, "u-patient", "Pat", "p@x.com", models.RolePatient)
	supporter := env.seedUser(t, "u-supporter", "Sam", "s@x.com", models.RoleSupporter)

	env.user = patient
	w := env.do(t, http.MethodPost, "/api/v1/invitations", gin.H{
		"invitee_email": "s@x.com",
		"target_role":   models.RoleSupporter,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/invitations/sent", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeJSON(t, w)["invitations"], 1)

	w = env.do(t, http.MethodGet, "/api/v1/invitations/sent?status=accepted", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeJSON(t, w)["invitations"], 0)

	w = env.do(t, http.MethodGet, "/api/v1/invitations/sent?status=expired", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, pairing.CodeValidationFailed, errorCode(t, w))

	env.user = supporter
	w = env.do(t, http.MethodGet, "/api/v1/invitations/received", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeJSON(t, w)["invitations"], 1)

	env.user = patient
	w = env.do(t, http.MethodGet, "/api/v1/invitations/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decodeJSON(t, w)
	assert.Equal(t, float64(1), stats["sent"])
	assert.Equal(t, float64(0), stats["accepted"])
	assert.Equal(t, float64(1), stats["created_today"])
}
