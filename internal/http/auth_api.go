package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mensajeria/internal/auth"
	"mensajeria/internal/config"
	"mensajeria/internal/domain"
	"mensajeria/internal/requestlog"
	"mensajeria/internal/service"
	"mensajeria/internal/storage"
)

const (
	authServiceName = "autenticacion"
	serviceVersion  = "1.0.0"

	defaultLogLimit = 100
)

// ArchiveLister lists archived request-log objects.
type ArchiveLister interface {
	ListArchives(ctx context.Context) ([]storage.ObjectInfo, error)
}

// AuthSettings is the subset of configuration echoed by /health and /config.
type AuthSettings struct {
	TokenExpireMinutes int
	Port               int
	Environment        string
	UserStore          string
}

// AuthHandler serves the credential authority routes.
type AuthHandler struct {
	users    service.UserService
	ring     *requestlog.Ring
	archive  ArchiveLister
	settings AuthSettings
	logger   logrus.FieldLogger
}

// NewAuthHandler wires the authority routes. archive may be nil when no
// bucket is configured.
func NewAuthHandler(users service.UserService, ring *requestlog.Ring, archive ArchiveLister, settings AuthSettings, logger logrus.FieldLogger) *AuthHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &AuthHandler{
		users:    users,
		ring:     ring,
		archive:  archive,
		settings: settings,
		logger:   logger,
	}
}

func (h *AuthHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)
	router.POST("/login", h.login)
	router.GET("/validate", h.validate)
	router.POST("/validate", h.validate)
	router.POST("/register", h.register)
	router.GET("/users", h.listUsers)
	router.GET("/logs", h.listLogs)
	router.GET("/logs/archive", h.listArchives)
	router.GET("/config", h.showConfig)
	router.GET("/stats", h.stats)
}

type loginRequest struct {
	Username *string `json:"username" binding:"required"`
	Password *string `json:"password" binding:"required"`
}

type loginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int64          `json:"expires_in"`
	UserInfo    domain.Profile `json:"user_info"`
}

type registerRequest struct {
	Username *string `json:"username" binding:"required"`
	Password *string `json:"password" binding:"required"`
	Name     *string `json:"nombre" binding:"required"`
	Email    *string `json:"email" binding:"required"`
}

type validateResponse struct {
	Valid    bool        `json:"valid"`
	Username string      `json:"username,omitempty"`
	Role     domain.Role `json:"rol,omitempty"`
	Message  string      `json:"message"`
}

func (h *AuthHandler) health(c *gin.Context) {
	total, err := h.users.Count(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("count users")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Directorio de usuarios no disponible"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   authServiceName,
		"version":   serviceVersion,
		"timestamp": time.Now().Format(time.RFC3339),
		"config": gin.H{
			"token_expire_minutes": h.settings.TokenExpireMinutes,
			"total_users":          total,
		},
	})
}

func (h *AuthHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBinding(c, err)
		return
	}

	res, err := h.users.Login(c.Request.Context(), *req.Username, *req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			abortDetail(c, http.StatusUnauthorized, "Credenciales inválidas")
			return
		}
		h.logger.WithError(err).Error("login")
		abortDetail(c, http.StatusInternalServerError, "Error interno")
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		AccessToken: res.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(res.ExpiresIn / time.Second),
		UserInfo:    res.Profile,
	})
}

// validate always answers 200; the verdict is in the body.
func (h *AuthHandler) validate(c *gin.Context) {
	v := h.users.Verify(auth.BearerToken(c.GetHeader("Authorization")))

	resp := validateResponse{Valid: v.Valid}
	switch {
	case v.Valid:
		resp.Username = v.Subject
		resp.Role = v.Role
		resp.Message = "Token válido"
	case v.Reason == auth.ReasonMissing:
		resp.Message = "No se proporcionó token"
	case v.Reason == auth.ReasonExpired:
		resp.Message = "Token expirado"
	default:
		resp.Message = "Token inválido"
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBinding(c, err)
		return
	}

	profile, err := h.users.Register(c.Request.Context(), *req.Username, *req.Password, *req.Name, *req.Email)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrUserAlreadyExists):
		abortDetail(c, http.StatusBadRequest, "El usuario ya existe")
		return
	case errors.Is(err, service.ErrWeakPassword):
		abortDetail(c, http.StatusBadRequest, "La contraseña debe tener al menos 4 caracteres")
		return
	case errors.Is(err, service.ErrInvalidInput):
		abortDetail(c, http.StatusBadRequest, err.Error())
		return
	default:
		h.logger.WithError(err).Error("register")
		abortDetail(c, http.StatusInternalServerError, "Error interno")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Usuario registrado exitosamente",
		"username": profile.Username,
		"rol":      profile.Role,
	})
}

func (h *AuthHandler) listUsers(c *gin.Context) {
	if _, ok := h.requireAdmin(c, "Solo los administradores pueden ver la lista de usuarios"); !ok {
		return
	}

	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("list users")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Directorio de usuarios no disponible"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "total": len(users)})
}

func (h *AuthHandler) listLogs(c *gin.Context) {
	if _, ok := h.requireAdmin(c, "Solo los administradores pueden ver los logs"); !ok {
		return
	}

	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLogLimit
	}

	logs := h.ring.Recent(limit)
	c.JSON(http.StatusOK, gin.H{
		"logs":       logs,
		"total_logs": h.ring.Len(),
		"returned":   len(logs),
	})
}

func (h *AuthHandler) listArchives(c *gin.Context) {
	if _, ok := h.requireAdmin(c, "Solo los administradores pueden ver los logs"); !ok {
		return
	}
	if h.archive == nil {
		abortDetail(c, http.StatusNotFound, "Archivo de logs no configurado")
		return
	}

	objects, err := h.archive.ListArchives(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("list log archives")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Almacenamiento de logs no disponible"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"archives": objects, "total": len(objects)})
}

func (h *AuthHandler) showConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service_name": "Servicio de Autenticación",
		"version":      serviceVersion,
		"configuration": gin.H{
			"JWT_SECRET_KEY":       config.SecretMask,
			"TOKEN_EXPIRE_MINUTES": h.settings.TokenExpireMinutes,
			"AUTH_SERVICE_PORT":    h.settings.Port,
			"ENVIRONMENT":          h.settings.Environment,
			"USER_STORE":           h.settings.UserStore,
		},
		"features": gin.H{
			"jwt_authentication": true,
			"user_registration":  true,
			"request_logging":    true,
			"role_based_access":  true,
			"log_archive":        h.archive != nil,
		},
	})
}

func (h *AuthHandler) stats(c *gin.Context) {
	total, err := h.users.Count(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("count users")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Directorio de usuarios no disponible"})
		return
	}

	s := h.ring.Stats()
	c.JSON(http.StatusOK, gin.H{
		"total_requests":           s.TotalRequests,
		"total_users":              total,
		"requests_by_method":       s.RequestsByMethod,
		"requests_by_status":       s.RequestsByStatus,
		"average_response_time_ms": s.AverageResponseTimeMs,
	})
}

// requireAdmin writes the 401/403 response itself and reports whether the
// handler may continue.
func (h *AuthHandler) requireAdmin(c *gin.Context, forbidden string) (*domain.Caller, bool) {
	token := auth.BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		abortDetail(c, http.StatusUnauthorized, "Se requiere autenticación")
		return nil, false
	}

	caller, err := h.users.Authorize(token, domain.RoleAdmin)
	switch {
	case err == nil:
		return caller, true
	case errors.Is(err, auth.ErrTokenExpired):
		abortDetail(c, http.StatusUnauthorized, "Token expirado")
	case errors.Is(err, service.ErrForbidden):
		h.logger.WithFields(logrus.Fields{"username": caller.Username, "path": c.Request.URL.Path}).Warn("admin route denied")
		abortDetail(c, http.StatusForbidden, forbidden)
	default:
		abortDetail(c, http.StatusUnauthorized, "Token inválido")
	}
	return nil, false
}
