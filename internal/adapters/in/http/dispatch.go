package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"campusdelivery/internal/core/domain/services"
)

// DispatchOrder handles POST /api/v1/orders/:orderId/dispatch. It opens a
// broadcast offer to nearby partners; partners race to accept it. The body
// is optional.
func (s *Server) DispatchOrder(ctx echo.Context) error {
	var req dispatchRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}
	if req.MaxPartners < 0 {
		return badRequest(ctx, "max_partners must not be negative")
	}

	d, err := s.dispatcher.FindAvailablePartners(ctx.Request().Context(), ctx.Param("orderId"), req.MaxPartners)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, toDispatchResponse(d))
}

// GetDispatch handles GET /api/v1/orders/:orderId/dispatch.
func (s *Server) GetDispatch(ctx echo.Context) error {
	d, err := s.dispatcher.GetDispatch(ctx.Request().Context(), ctx.Param("orderId"))
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, toDispatchResponse(d))
}

// AcceptDispatch handles POST /api/v1/orders/:orderId/dispatch/accept.
func (s *Server) AcceptDispatch(ctx echo.Context) error {
	var req partnerRef
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}
	if req.PartnerID == "" {
		return badRequest(ctx, "partner_id is required")
	}

	d, err := s.dispatcher.AcceptOrder(ctx.Request().Context(), ctx.Param("orderId"), req.PartnerID)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, toDispatchResponse(d))
}

// AssignBestPartner handles POST /api/v1/orders/:orderId/dispatch/assign-best.
// It picks and assigns the single best-scoring partner directly, without an
// acceptance round.
func (s *Server) AssignBestPartner(ctx echo.Context) error {
	var req assignBestRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	strategy := services.Strategy(req.Strategy)
	if req.Strategy == "" {
		strategy = services.StrategyBalanced
	}
	if req.MaxDistanceKm < 0 {
		return badRequest(ctx, "max_distance_km must not be negative")
	}

	result, err := s.dispatcher.AssignBestPartner(ctx.Request().Context(), ctx.Param("orderId"), strategy, req.MaxDistanceKm)
	if err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, assignBestResponse{
		PartnerID:        result.PartnerID,
		DistanceKm:       result.DistanceKm,
		Score:            result.Score,
		EstimatedMinutes: result.EstimatedMinutes,
	})
}
