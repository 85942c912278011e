// Package http exposes the order orchestration, dispatch, and tracking
// operations over an echo HTTP API.
package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"campusdelivery/internal/core/application/dispatchsvc"
	"campusdelivery/internal/core/application/orchestrator"
	"campusdelivery/internal/core/application/trackingsvc"
	"campusdelivery/internal/core/application/usecases/queries"
	"campusdelivery/internal/core/domain/model/dispatch"
	"campusdelivery/internal/core/domain/workflow"
	"campusdelivery/internal/core/ports"
	"campusdelivery/internal/pkg/errs"
)

// Server coordinates between HTTP handlers and the application services.
type Server struct {
	orchestrator   *orchestrator.Orchestrator
	dispatcher     *dispatchsvc.Service
	tracker        *trackingsvc.Service
	uowFactory     ports.UnitOfWorkFactory
	geocoder       ports.Geocoder
	activeOrders   queries.GetActiveOrdersQueryHandler
	onlinePartners queries.GetOnlinePartnersQueryHandler
}

// NewServer creates the HTTP server over the application services. geocoder
// may be nil; address-based order creation then rejects with 400.
func NewServer(
	orch *orchestrator.Orchestrator,
	dispatcher *dispatchsvc.Service,
	tracker *trackingsvc.Service,
	uowFactory ports.UnitOfWorkFactory,
	geocoder ports.Geocoder,
	activeOrders queries.GetActiveOrdersQueryHandler,
	onlinePartners queries.GetOnlinePartnersQueryHandler,
) *Server {
	return &Server{
		orchestrator:   orch,
		dispatcher:     dispatcher,
		tracker:        tracker,
		uowFactory:     uowFactory,
		geocoder:       geocoder,
		activeOrders:   activeOrders,
		onlinePartners: onlinePartners,
	}
}

// RegisterRoutes attaches every API route to the echo instance.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api/v1")

	api.POST("/orders", s.CreateOrder)
	api.GET("/orders/active", s.ListActiveOrders)
	api.GET("/orders/:orderId/workflow", s.GetWorkflowStatus)
	api.POST("/orders/:orderId/transition", s.TransitionOrder)
	api.POST("/orders/:orderId/payment/confirm", s.ConfirmPayment)
	api.POST("/orders/:orderId/payment/fail", s.FailPayment)
	api.POST("/orders/:orderId/assign", s.AssignPartner)
	api.POST("/orders/:orderId/pickup", s.PickUpOrder)
	api.POST("/orders/:orderId/deliver", s.DeliverOrder)
	api.POST("/orders/:orderId/cancel", s.CancelOrder)

	api.POST("/orders/:orderId/dispatch", s.DispatchOrder)
	api.GET("/orders/:orderId/dispatch", s.GetDispatch)
	api.POST("/orders/:orderId/dispatch/accept", s.AcceptDispatch)
	api.POST("/orders/:orderId/dispatch/assign-best", s.AssignBestPartner)

	api.POST("/orders/:orderId/tracking", s.StartTracking)
	api.GET("/orders/:orderId/tracking", s.GetTrackingSession)
	api.POST("/orders/:orderId/tracking/complete", s.CompleteTracking)

	api.POST("/partners", s.CreatePartner)
	api.GET("/partners", s.ListOnlinePartners)
	api.GET("/partners/:partnerId", s.GetPartner)
	api.POST("/partners/:partnerId/online", s.PartnerGoOnline)
	api.POST("/partners/:partnerId/offline", s.PartnerGoOffline)
	api.POST("/partners/:partnerId/location", s.UpdatePartnerLocation)
	api.GET("/partners/:partnerId/location", s.GetPartnerLocation)

	api.GET("/geofences", s.ListGeofences)
	api.POST("/geofences", s.CreateGeofence)
	api.DELETE("/geofences/:geofenceId", s.DeleteGeofence)
}

// errorResponse is the uniform error body of the API.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// fail maps application errors to HTTP status codes.
func fail(ctx echo.Context, err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrObjectNotFound):
		code = http.StatusNotFound
	case errors.Is(err, errs.ErrValueIsInvalid),
		errors.Is(err, errs.ErrValueIsRequired),
		errors.Is(err, errs.ErrValueIsOutOfRange):
		code = http.StatusBadRequest
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrPreconditionNotMet),
		errors.Is(err, dispatch.ErrAlreadyAssigned),
		errors.Is(err, dispatchsvc.ErrOrderNotDispatchable),
		errors.Is(err, dispatchsvc.ErrNoPartnersAvailable),
		errors.Is(err, dispatchsvc.ErrNoPartnersInRange),
		errors.Is(err, orchestrator.ErrPartnerMismatch):
		code = http.StatusConflict
	}

	return ctx.JSON(code, errorResponse{Code: code, Message: err.Error()})
}

// workflowTrigger maps the wire trigger to its domain kind. A missing
// trigger means a manual API-driven transition; invalid kinds are rejected
// by the engine.
func workflowTrigger(raw string) workflow.TriggerKind {
	if raw == "" {
		return workflow.TriggerManual
	}
	return workflow.TriggerKind(raw)
}

func badRequest(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, errorResponse{
		Code:    http.StatusBadRequest,
		Message: message,
	})
}
