package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mensajeria/internal/authclient"
	"mensajeria/internal/service"
)

// TestResourceServiceTrustsLiveAuthority runs both routers, with the
// resource service introspecting tokens over real HTTP.
func TestResourceServiceTrustsLiveAuthority(t *testing.T) {
	authority := newAuthFixture(t, nil)
	authSrv := httptest.NewServer(authority.router)
	defer authSrv.Close()

	logger, _ := test.NewNullLogger()
	repo := &memMessages{}
	client := authclient.New(authSrv.URL, time.Second, logger)
	resource := NewRouter(logger, nil)
	NewMessageHandler(service.NewMessageService(repo, client, logger), "mensajeria", client.BaseURL(), logger).RegisterRoutes(resource)

	admin := authority.login(t, "admin", "admin123")
	user := authority.login(t, "usuario1", "user123")

	rec := do(resource, http.MethodPost, "/save", `{"mensaje":"de admin","autor":"A"}`, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", decode(t, rec)["saved_by"])

	rec = do(resource, http.MethodPost, "/save", `{"mensaje":"anon","autor":"B"}`, "")
	assert.Equal(t, "anónimo", decode(t, rec)["saved_by"])

	rec = do(resource, http.MethodGet, "/data/protected", "", user)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["total"])

	rec = do(resource, http.MethodDelete, "/data/1", "", user)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(resource, http.MethodDelete, "/data/1", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", decode(t, rec)["deleted_by"])

	rec = do(resource, http.MethodGet, "/health", "", "")
	assert.Equal(t, "conectado", decode(t, rec)["auth_service"])

	// every protected call reaches the authority's ring
	validations := 0
	for _, e := range authority.ring.Recent(-1) {
		if e.Path == "/validate" {
			validations++
		}
	}
	assert.Equal(t, 4, validations)

	authority.clock.Advance(31 * time.Minute)
	rec = do(resource, http.MethodGet, "/data/protected", "", admin)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = do(resource, http.MethodPost, "/save", `{"mensaje":"tarde","autor":"A"}`, admin)
	assert.Equal(t, "anónimo", decode(t, rec)["saved_by"])

	authSrv.Close()
	rec = do(resource, http.MethodGet, "/health", "", "")
	assert.Equal(t, "no disponible", decode(t, rec)["auth_service"])
	rec = do(resource, http.MethodGet, "/data/protected", "", user)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
