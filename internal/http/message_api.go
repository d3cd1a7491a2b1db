package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mensajeria/internal/domain"
	"mensajeria/internal/repository"
	"mensajeria/internal/service"
)

// MessageHandler serves the resource service routes.
type MessageHandler struct {
	messages service.MessageService
	database string
	authURL  string
	logger   logrus.FieldLogger
}

func NewMessageHandler(messages service.MessageService, database, authURL string, logger logrus.FieldLogger) *MessageHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &MessageHandler{
		messages: messages,
		database: database,
		authURL:  authURL,
		logger:   logger,
	}
}

func (h *MessageHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)
	router.GET("/data", h.listMessages)
	router.POST("/save", h.saveMessage)
	router.GET("/data/protected", h.listProtected)
	router.DELETE("/data/:id", h.deleteMessage)
}

type saveRequest struct {
	Body   *string `json:"mensaje" binding:"required"`
	Author *string `json:"autor" binding:"required"`
}

// MessageResponse is the wire form of a stored message.
type MessageResponse struct {
	ID        int64      `json:"id"`
	Body      string     `json:"mensaje"`
	Author    string     `json:"autor"`
	Username  string     `json:"usuario"`
	CreatedAt *time.Time `json:"fecha_creacion,omitempty"`
}

func messageToResponse(m domain.Message) MessageResponse {
	resp := MessageResponse{
		ID:       m.ID,
		Body:     m.Body,
		Author:   m.Author,
		Username: m.Username,
	}
	if !m.CreatedAt.IsZero() {
		created := m.CreatedAt
		resp.CreatedAt = &created
	}
	return resp
}

func messagesToResponse(messages []domain.Message) []MessageResponse {
	resp := make([]MessageResponse, len(messages))
	for i := range messages {
		resp[i] = messageToResponse(messages[i])
	}
	return resp
}

func (h *MessageHandler) health(c *gin.Context) {
	health := h.messages.Health(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"db_connected": health.DBConnected,
		"database":     h.database,
		"auth_service": health.AuthStatus,
		"auth_url":     h.authURL,
	})
}

func (h *MessageHandler) listMessages(c *gin.Context) {
	messages, err := h.messages.ListAll(c.Request.Context())
	if err != nil {
		h.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, messagesToResponse(messages))
}

func (h *MessageHandler) saveMessage(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBinding(c, err)
		return
	}

	res, err := h.messages.Save(c.Request.Context(), *req.Body, *req.Author, c.GetHeader("Authorization"))
	if err != nil {
		h.storageError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "saved",
		"id":     res.Message.ID,
		"data": gin.H{
			"mensaje": res.Message.Body,
			"autor":   res.Message.Author,
		},
		"saved_by":      res.Message.Username,
		"authenticated": res.Authenticated,
	})
}

func (h *MessageHandler) listProtected(c *gin.Context) {
	authorization := c.GetHeader("Authorization")
	if strings.TrimSpace(authorization) == "" {
		abortDetail(c, http.StatusUnauthorized, "Se requiere autenticación")
		return
	}

	caller, messages, err := h.messages.ListProtected(c.Request.Context(), authorization)
	if err != nil {
		if errors.Is(err, service.ErrUnauthenticated) {
			abortDetail(c, http.StatusUnauthorized, "Token inválido o expirado")
			return
		}
		h.storageError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  caller,
		"data":  messagesToResponse(messages),
		"total": len(messages),
	})
}

func (h *MessageHandler) deleteMessage(c *gin.Context) {
	authorization := c.GetHeader("Authorization")
	if strings.TrimSpace(authorization) == "" {
		abortDetail(c, http.StatusUnauthorized, "Se requiere autenticación")
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortDetail(c, http.StatusBadRequest, "ID de mensaje inválido")
		return
	}

	caller, err := h.messages.Delete(c.Request.Context(), id, authorization)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrUnauthenticated):
		abortDetail(c, http.StatusUnauthorized, "Token inválido o expirado")
		return
	case errors.Is(err, service.ErrForbidden):
		abortDetail(c, http.StatusForbidden, "Solo administradores pueden eliminar mensajes")
		return
	case errors.Is(err, repository.ErrMessageNotFound):
		abortDetail(c, http.StatusNotFound, "Mensaje no encontrado")
		return
	default:
		h.storageError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "deleted",
		"id":         id,
		"deleted_by": caller.Username,
	})
}

// storageError reports any repository failure as 503 so it is never
// mistaken for data.
func (h *MessageHandler) storageError(c *gin.Context, err error) {
	msg := "Error de base de datos"
	if errors.Is(err, repository.ErrStorageUnavailable) {
		msg = "Base de datos no conectada"
	}
	h.logger.WithError(err).Error("message storage")
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": msg})
}
