package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"campusdelivery/internal/core/application/usecases/queries"
	"campusdelivery/internal/core/domain/model/partner"
)

// CreatePartner handles POST /api/v1/partners.
func (s *Server) CreatePartner(ctx echo.Context) error {
	var req createPartnerRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	id := req.PartnerID
	if id == "" {
		id = uuid.NewString()
	}

	newPartner, err := partner.NewPartner(id, req.Name, req.PriorityClass, partner.Vehicle(req.Vehicle))
	if err != nil {
		return fail(ctx, err)
	}

	reqCtx := ctx.Request().Context()
	uow := s.uowFactory.Create()
	if err = uow.Begin(reqCtx); err != nil {
		return fail(ctx, err)
	}
	defer func() {
		_ = uow.Rollback(reqCtx)
	}()

	if err = uow.PartnerRepository().Add(reqCtx, newPartner); err != nil {
		return fail(ctx, err)
	}
	if err = uow.Commit(reqCtx); err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, toPartnerResponse(newPartner))
}

// GetPartner handles GET /api/v1/partners/:partnerId.
func (s *Server) GetPartner(ctx echo.Context) error {
	uow := s.uowFactory.Create()
	found, err := uow.PartnerRepository().Get(ctx.Request().Context(), ctx.Param("partnerId"))
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, toPartnerResponse(found))
}

// PartnerGoOnline handles POST /api/v1/partners/:partnerId/online.
func (s *Server) PartnerGoOnline(ctx echo.Context) error {
	return s.setPartnerAvailability(ctx, true)
}

// PartnerGoOffline handles POST /api/v1/partners/:partnerId/offline.
func (s *Server) PartnerGoOffline(ctx echo.Context) error {
	return s.setPartnerAvailability(ctx, false)
}

func (s *Server) setPartnerAvailability(ctx echo.Context, online bool) error {
	reqCtx := ctx.Request().Context()

	uow := s.uowFactory.Create()
	if err := uow.Begin(reqCtx); err != nil {
		return fail(ctx, err)
	}
	defer func() {
		_ = uow.Rollback(reqCtx)
	}()

	found, err := uow.PartnerRepository().Get(reqCtx, ctx.Param("partnerId"))
	if err != nil {
		return fail(ctx, err)
	}

	if online {
		found.GoOnline()
	} else {
		found.GoOffline()
	}

	if err = uow.PartnerRepository().Update(reqCtx, found); err != nil {
		return fail(ctx, err)
	}
	if err = uow.Commit(reqCtx); err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, toPartnerResponse(found))
}

// ListOnlinePartners returns the directory of partners currently accepting
// work.
func (s *Server) ListOnlinePartners(ctx echo.Context) error {
	rows, err := s.onlinePartners.Handle(ctx.Request().Context(), queries.NewGetOnlinePartnersQuery())
	if err != nil {
		return fail(ctx, err)
	}

	resp := make([]onlinePartnerDTO, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, toOnlinePartnerDTO(row))
	}
	return ctx.JSON(http.StatusOK, resp)
}
