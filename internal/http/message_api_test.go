package http

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mensajeria/internal/domain"
	"mensajeria/internal/service"
)

type stubPeer struct {
	callers   map[string]*domain.Caller
	healthErr error
}

func (p *stubPeer) ResolveCaller(ctx context.Context, authorization string) *domain.Caller {
	return p.callers[authorization]
}

func (p *stubPeer) Health(ctx context.Context) error {
	return p.healthErr
}

const (
	adminHeader = "Bearer admin-token"
	userHeader  = "Bearer user-token"
)

func newMessageFixture(t *testing.T) (*gin.Engine, *memMessages, *stubPeer) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	repo := &memMessages{}
	peer := &stubPeer{callers: map[string]*domain.Caller{
		adminHeader: {Username: "admin", Role: domain.RoleAdmin},
		userHeader:  {Username: "usuario1", Role: domain.RoleUsuario},
	}}

	router := NewRouter(logger, nil)
	NewMessageHandler(service.NewMessageService(repo, peer, logger), "mensajeria", "http://auth:8001", logger).RegisterRoutes(router)
	return router, repo, peer
}

func TestSave_AnonymousAndAuthenticated(t *testing.T) {
	router, _, _ := newMessageFixture(t)

	rec := do(router, http.MethodPost, "/save", `{"mensaje":"hola","autor":"Ana"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"status":"saved","id":1,"data":{"mensaje":"hola","autor":"Ana"},"saved_by":"anónimo","authenticated":false}`, rec.Body.String())

	rec = do(router, http.MethodPost, "/save", `{"mensaje":"hola","autor":"Ana"}`, "Bearer garbage")
	assert.Equal(t, "anónimo", decode(t, rec)["saved_by"])

	rec = do(router, http.MethodPost, "/save", `{"mensaje":"x","autor":"Ana"}`, adminHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "admin", body["saved_by"])
	assert.Equal(t, true, body["authenticated"])
}

func TestSave_Validation(t *testing.T) {
	router, _, _ := newMessageFixture(t)

	rec := do(router, http.MethodPost, "/save", `{"mensaje":"hola"}`, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(router, http.MethodPost, "/save", `{"mensaje":"","autor":""}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListMessages_NewestFirst(t *testing.T) {
	router, _, _ := newMessageFixture(t)
	do(router, http.MethodPost, "/save", `{"mensaje":"uno","autor":"a"}`, "")
	do(router, http.MethodPost, "/save", `{"mensaje":"dos","autor":"b"}`, userHeader)

	rec := do(router, http.MethodGet, "/data", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"id":2,"mensaje":"dos","autor":"b","usuario":"usuario1","fecha_creacion":"2026-10-16T09:00:02Z"},
		{"id":1,"mensaje":"uno","autor":"a","usuario":"anónimo","fecha_creacion":"2026-10-16T09:00:01Z"}
	]`, rec.Body.String())
}

func TestStorageDownIsServiceUnavailable(t *testing.T) {
	router, repo, _ := newMessageFixture(t)
	repo.setDown(true)

	for _, tc := range []struct{ method, path, body, auth string }{
		{http.MethodGet, "/data", "", ""},
		{http.MethodPost, "/save", `{"mensaje":"m","autor":"a"}`, ""},
		{http.MethodGet, "/data/protected", "", userHeader},
		{http.MethodDelete, "/data/1", "", adminHeader},
	} {
		rec := do(router, tc.method, tc.path, tc.body, tc.auth)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tc.path)
		assert.JSONEq(t, `{"error":"Base de datos no conectada"}`, rec.Body.String(), tc.path)
	}
}

func TestListProtected(t *testing.T) {
	router, _, _ := newMessageFixture(t)
	do(router, http.MethodPost, "/save", `{"mensaje":"uno","autor":"a"}`, "")

	rec := do(router, http.MethodGet, "/data/protected", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"Se requiere autenticación"}`, rec.Body.String())

	rec = do(router, http.MethodGet, "/data/protected", "", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"Token inválido o expirado"}`, rec.Body.String())

	rec = do(router, http.MethodGet, "/data/protected", "", userHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, map[string]any{"username": "usuario1", "rol": "usuario"}, body["user"])
	assert.EqualValues(t, 1, body["total"])
	assert.Len(t, body["data"], 1)
}

func TestDeleteMessage(t *testing.T) {
	router, repo, _ := newMessageFixture(t)
	do(router, http.MethodPost, "/save", `{"mensaje":"uno","autor":"a"}`, "")

	rec := do(router, http.MethodDelete, "/data/abc", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"Se requiere autenticación"}`, rec.Body.String())

	rec = do(router, http.MethodDelete, "/data/abc", "", adminHeader)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodDelete, "/data/1", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(router, http.MethodDelete, "/data/1", "", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"Token inválido o expirado"}`, rec.Body.String())

	rec = do(router, http.MethodDelete, "/data/1", "", userHeader)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"detail":"Solo administradores pueden eliminar mensajes"}`, rec.Body.String())
	assert.Len(t, repo.items, 1)

	rec = do(router, http.MethodDelete, "/data/99", "", adminHeader)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Mensaje no encontrado"}`, rec.Body.String())

	rec = do(router, http.MethodDelete, "/data/1", "", adminHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"deleted","id":1,"deleted_by":"admin"}`, rec.Body.String())
	assert.Empty(t, repo.items)
}

func TestMessageHealth(t *testing.T) {
	router, repo, peer := newMessageFixture(t)

	rec := do(router, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","db_connected":true,"database":"mensajeria","auth_service":"conectado","auth_url":"http://auth:8001"}`, rec.Body.String())

	repo.setDown(true)
	peer.healthErr = service.ErrPeerUnhealthy
	rec = do(router, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["db_connected"])
	assert.Equal(t, "error", body["auth_service"])
}
