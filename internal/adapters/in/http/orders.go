package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"campusdelivery/internal/core/application/usecases/queries"
	"campusdelivery/internal/core/domain/model/kernel"
	"campusdelivery/internal/core/domain/model/order"
)

// CreateOrder handles POST /api/v1/orders. The destination is given either
// as coordinates or as a free-text address resolved through the geocoder.
func (s *Server) CreateOrder(ctx echo.Context) error {
	var req createOrderRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	var location kernel.GeoPoint
	var err error
	switch {
	case req.DeliveryLocation != nil:
		location, err = kernel.NewGeoPoint(req.DeliveryLocation.Lat, req.DeliveryLocation.Lng)
	case req.DeliveryAddress != "":
		if s.geocoder == nil {
			return badRequest(ctx, "no geocoder configured, send delivery_location coordinates")
		}
		location, err = s.geocoder.Geocode(ctx.Request().Context(), req.DeliveryAddress)
	default:
		return badRequest(ctx, "delivery_location or delivery_address is required")
	}
	if err != nil {
		return fail(ctx, err)
	}

	items := make([]order.Item, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, order.Item{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	created, err := s.orchestrator.InitializeOrder(ctx.Request().Context(), req.OrderID, items, location)
	if err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, createOrderResponse{
		OrderID:  created.ID(),
		Status:   string(created.Status()),
		PlacedAt: created.Timestamps().PlacedAt.UTC().Format(time.RFC3339),
	})
}

// GetWorkflowStatus handles GET /api/v1/orders/:orderId/workflow.
func (s *Server) GetWorkflowStatus(ctx echo.Context) error {
	status, err := s.orchestrator.GetWorkflowStatus(ctx.Request().Context(), ctx.Param("orderId"))
	if err != nil {
		return fail(ctx, err)
	}

	allowed := make([]string, 0, len(status.AllowedTransitions))
	for _, target := range status.AllowedTransitions {
		allowed = append(allowed, string(target))
	}

	return ctx.JSON(http.StatusOK, workflowStatusResponse{
		OrderID:            status.OrderID,
		Status:             string(status.Status),
		PaymentStatus:      string(status.PaymentStatus),
		AssignedPartnerID:  status.AssignedPartnerID,
		AllowedTransitions: allowed,
		EstimatedMinutes:   status.EstimatedMinutes,
	})
}

// TransitionOrder handles POST /api/v1/orders/:orderId/transition.
func (s *Server) TransitionOrder(ctx echo.Context) error {
	var req transitionRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	target, err := order.ParseStatus(req.Target)
	if err != nil {
		return fail(ctx, err)
	}

	event, err := s.orchestrator.TransitionOrder(
		ctx.Request().Context(),
		ctx.Param("orderId"),
		target,
		workflowTrigger(req.Trigger),
		req.Metadata,
	)
	if err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, toTransitionResponse(event))
}

// ConfirmPayment handles POST /api/v1/orders/:orderId/payment/confirm.
func (s *Server) ConfirmPayment(ctx echo.Context) error {
	event, err := s.orchestrator.HandlePaymentConfirmation(ctx.Request().Context(), ctx.Param("orderId"))
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, toTransitionResponse(event))
}

// FailPayment handles POST /api/v1/orders/:orderId/payment/fail.
func (s *Server) FailPayment(ctx echo.Context) error {
	event, err := s.orchestrator.HandlePaymentFailure(ctx.Request().Context(), ctx.Param("orderId"))
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, toTransitionResponse(event))
}

// AssignPartner handles POST /api/v1/orders/:orderId/assign.
func (s *Server) AssignPartner(ctx echo.Context) error {
	var req partnerRef
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	event, err := s.orchestrator.HandlePartnerAssignment(ctx.Request().Context(), ctx.Param("orderId"), req.PartnerID)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, toTransitionResponse(event))
}

// PickUpOrder handles POST /api/v1/orders/:orderId/pickup.
func (s *Server) PickUpOrder(ctx echo.Context) error {
	var req partnerRef
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	event, err := s.orchestrator.HandleOrderPickup(ctx.Request().Context(), ctx.Param("orderId"), req.PartnerID)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, toTransitionResponse(event))
}

// DeliverOrder handles POST /api/v1/orders/:orderId/deliver.
func (s *Server) DeliverOrder(ctx echo.Context) error {
	var req partnerRef
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	event, err := s.orchestrator.HandleOrderDelivery(ctx.Request().Context(), ctx.Param("orderId"), req.PartnerID)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, toTransitionResponse(event))
}

// CancelOrder handles POST /api/v1/orders/:orderId/cancel.
func (s *Server) CancelOrder(ctx echo.Context) error {
	var req cancelOrderRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	event, err := s.orchestrator.HandleOrderCancellation(ctx.Request().Context(), ctx.Param("orderId"), req.Reason)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, toTransitionResponse(event))
}

// ListActiveOrders returns every order that has not yet reached a terminal
// status.
func (s *Server) ListActiveOrders(ctx echo.Context) error {
	rows, err := s.activeOrders.Handle(ctx.Request().Context(), queries.NewGetActiveOrdersQuery())
	if err != nil {
		return fail(ctx, err)
	}

	resp := make([]activeOrderDTO, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, toActiveOrderDTO(row))
	}
	return ctx.JSON(http.StatusOK, resp)
}
