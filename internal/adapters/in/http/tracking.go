package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"campusdelivery/internal/core/domain/model/kernel"
	"campusdelivery/internal/core/domain/model/tracking"
)

// StartTracking handles POST /api/v1/orders/:orderId/tracking.
func (s *Server) StartTracking(ctx echo.Context) error {
	var req partnerRef
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}
	if req.PartnerID == "" {
		return badRequest(ctx, "partner_id is required")
	}

	session, err := s.tracker.StartTrackingSession(ctx.Request().Context(), req.PartnerID, ctx.Param("orderId"))
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, toSessionResponse(session))
}

// GetTrackingSession handles GET /api/v1/orders/:orderId/tracking.
func (s *Server) GetTrackingSession(ctx echo.Context) error {
	session, err := s.tracker.GetTrackingSession(ctx.Request().Context(), ctx.Param("orderId"))
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, toSessionResponse(session))
}

// CompleteTracking handles POST /api/v1/orders/:orderId/tracking/complete.
func (s *Server) CompleteTracking(ctx echo.Context) error {
	var req completeTrackingRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	session, err := s.tracker.CompleteTrackingSession(ctx.Request().Context(), ctx.Param("orderId"), req.Cancelled)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, toSessionResponse(session))
}

// UpdatePartnerLocation handles POST /api/v1/partners/:partnerId/location.
func (s *Server) UpdatePartnerLocation(ctx echo.Context) error {
	var req updateLocationRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	location, err := kernel.NewGeoPoint(req.Lat, req.Lng)
	if err != nil {
		return fail(ctx, err)
	}

	at := time.Now()
	if req.At != "" {
		parsed, parseErr := time.Parse(time.RFC3339, req.At)
		if parseErr != nil {
			return badRequest(ctx, "at must be RFC 3339")
		}
		at = parsed
	}

	partnerID := ctx.Param("partnerId")
	result, err := s.tracker.UpdatePartnerLocation(ctx.Request().Context(), partnerID, location, at)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, toUpdateLocationResponse(partnerID, result))
}

// GetPartnerLocation handles GET /api/v1/partners/:partnerId/location.
func (s *Server) GetPartnerLocation(ctx echo.Context) error {
	partnerID := ctx.Param("partnerId")
	current, history, err := s.tracker.GetPartnerLocation(ctx.Request().Context(), partnerID)
	if err != nil {
		return fail(ctx, err)
	}

	fixes := make([]locationFixDTO, 0, len(history))
	for _, fix := range history {
		fixes = append(fixes, toLocationFixDTO(fix))
	}

	return ctx.JSON(http.StatusOK, partnerLocationResponse{
		PartnerID: partnerID,
		Current:   toLocationFixDTO(current),
		History:   fixes,
	})
}

// ListGeofences handles GET /api/v1/geofences.
func (s *Server) ListGeofences(ctx echo.Context) error {
	fences := s.tracker.Geofences()
	response := make([]geofenceResponse, 0, len(fences))
	for _, g := range fences {
		response = append(response, toGeofenceResponse(g))
	}
	return ctx.JSON(http.StatusOK, response)
}

// CreateGeofence handles POST /api/v1/geofences.
func (s *Server) CreateGeofence(ctx echo.Context) error {
	var req createGeofenceRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	center, err := kernel.NewGeoPoint(req.Center.Lat, req.Center.Lng)
	if err != nil {
		return fail(ctx, err)
	}

	id := req.GeofenceID
	if id == "" {
		id = uuid.NewString()
	}

	fence, err := tracking.NewGeofence(id, req.Name, center, req.RadiusMeters, tracking.GeofenceType(req.Type))
	if err != nil {
		return fail(ctx, err)
	}

	s.tracker.AddGeofence(fence)
	return ctx.JSON(http.StatusCreated, toGeofenceResponse(fence))
}

// DeleteGeofence handles DELETE /api/v1/geofences/:geofenceId.
func (s *Server) DeleteGeofence(ctx echo.Context) error {
	s.tracker.RemoveGeofence(ctx.Param("geofenceId"))
	return ctx.NoContent(http.StatusNoContent)
}
