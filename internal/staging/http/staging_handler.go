// Package http provides HTTP handlers for the staging pipeline: record
// ingestion and notification reconciliation.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/qbdrelay/internal/errors"
	"github.com/allisson/qbdrelay/internal/httputil"
	stagingDomain "github.com/allisson/qbdrelay/internal/staging/domain"
	"github.com/allisson/qbdrelay/internal/staging/http/dto"
	stagingUseCase "github.com/allisson/qbdrelay/internal/staging/usecase"
	customValidation "github.com/allisson/qbdrelay/internal/validation"
)

// StagingHandler handles HTTP requests for staging records and draining
// notifications. Each request is scoped by connection id and object type from
// the URL; origin and flow arrive as query parameters.
type StagingHandler struct {
	useCase       stagingUseCase.StagingUseCase
	defaultOrigin string
	logger        *slog.Logger
}

// NewStagingHandler creates a new staging handler with required dependencies.
func NewStagingHandler(
	useCase stagingUseCase.StagingUseCase,
	defaultOrigin string,
	logger *slog.Logger,
) *StagingHandler {
	return &StagingHandler{
		useCase:       useCase,
		defaultOrigin: defaultOrigin,
		logger:        logger,
	}
}

// namespaceFromRequest builds the storage namespace from URL and query
// parameters, falling back to the handler's configured origin.
func (h *StagingHandler) namespaceFromRequest(c *gin.Context) (stagingDomain.Namespace, bool) {
	connectionID := c.Param("connection_id")
	if err := validation.Validate(connectionID, validation.Required, customValidation.ConnectionID); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return stagingDomain.Namespace{}, false
	}

	origin := c.Query("origin")
	if origin == "" {
		origin = h.defaultOrigin
	}
	if err := validation.Validate(origin, customValidation.Origin); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return stagingDomain.Namespace{}, false
	}

	ns := stagingDomain.NewNamespace(connectionID, origin)
	ns.Flow = c.Query("flow")
	return ns, true
}

// objectTypeFromRequest validates and parses the object type URL parameter.
func (h *StagingHandler) objectTypeFromRequest(c *gin.Context) (stagingDomain.ObjectType, bool) {
	typeName := c.Param("object_type")
	if err := validation.Validate(typeName, validation.Required, customValidation.ObjectType); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return "", false
	}

	objectType, ok := stagingDomain.ParseObjectType(typeName)
	if !ok {
		// Unreachable after validation, kept as a guard.
		httputil.HandleErrorGin(c, apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown object type %q", typeName), h.logger)
		return "", false
	}
	return objectType, true
}

// StageHandler stages a batch of record payloads in the pending stage.
// POST /v1/connections/:connection_id/records/:object_type?origin=&flow=&polling=
// Returns 202 Accepted with the accepted payload count. With polling=true the
// payloads are staged for an inbound poll cycle instead of outbound dispatch.
func (h *StagingHandler) StageHandler(c *gin.Context) {
	ns, ok := h.namespaceFromRequest(c)
	if !ok {
		return
	}
	objectType, ok := h.objectTypeFromRequest(c)
	if !ok {
		return
	}

	var req dto.StageRecordsRequest

	// Parse and bind JSON
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	// Validate request
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	var err error
	if c.Query("polling") == "true" {
		err = h.useCase.SaveForPolling(c.Request.Context(), ns, objectType, req.Records)
	} else {
		err = h.useCase.Save(c.Request.Context(), ns, objectType, req.Records)
	}
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := dto.StageRecordsResponse{
		ObjectType: string(objectType),
		Accepted:   len(req.Records),
	}
	c.JSON(http.StatusAccepted, response)
}

// NotificationsHandler drains the accumulated notifications for one object
// type, grouped by status and message.
// GET /v1/connections/:connection_id/notifications/:object_type?origin=
// Returns 200 OK. This read is destructive: a second call returns empty groups.
func (h *StagingHandler) NotificationsHandler(c *gin.Context) {
	ns, ok := h.namespaceFromRequest(c)
	if !ok {
		return
	}
	objectType, ok := h.objectTypeFromRequest(c)
	if !ok {
		return
	}

	groups, err := h.useCase.CollectNotifications(c.Request.Context(), ns, objectType)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := dto.MapNotificationGroupsToResponse(groups)
	c.JSON(http.StatusOK, response)
}
