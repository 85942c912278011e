package http

import (
	"time"

	"campusdelivery/internal/core/application/trackingsvc"
	"campusdelivery/internal/core/application/usecases/queries"
	"campusdelivery/internal/core/domain/model/dispatch"
	"campusdelivery/internal/core/domain/model/kernel"
	"campusdelivery/internal/core/domain/model/partner"
	"campusdelivery/internal/core/domain/model/tracking"
	"campusdelivery/internal/core/domain/workflow"
)

type geoPointDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func toGeoPointDTO(p kernel.GeoPoint) geoPointDTO {
	return geoPointDTO{Lat: p.Lat(), Lng: p.Lng()}
}

type orderItemDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	OrderID          string         `json:"order_id,omitempty"`
	Items            []orderItemDTO `json:"items"`
	DeliveryLocation *geoPointDTO   `json:"delivery_location,omitempty"`
	DeliveryAddress  string         `json:"delivery_address,omitempty"`
}

type createOrderResponse struct {
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	PlacedAt string `json:"placed_at"`
}

type transitionRequest struct {
	Target   string         `json:"target"`
	Trigger  string         `json:"trigger"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type transitionResponse struct {
	OrderID string `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Trigger string `json:"trigger"`
	At      string `json:"at"`
}

func toTransitionResponse(event workflow.TransitionEvent) transitionResponse {
	return transitionResponse{
		OrderID: event.OrderID,
		From:    string(event.From),
		To:      string(event.To),
		Trigger: string(event.Trigger),
		At:      event.At.UTC().Format(time.RFC3339),
	}
}

type partnerRef struct {
	PartnerID string `json:"partner_id"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type workflowStatusResponse struct {
	OrderID            string   `json:"order_id"`
	Status             string   `json:"status"`
	PaymentStatus      string   `json:"payment_status"`
	AssignedPartnerID  *string  `json:"assigned_partner_id,omitempty"`
	AllowedTransitions []string `json:"allowed_transitions"`
	EstimatedMinutes   *float64 `json:"estimated_delivery_minutes,omitempty"`
}

type dispatchCandidateDTO struct {
	PartnerID  string  `json:"partner_id"`
	DistanceKm float64 `json:"distance_km"`
	Priority   bool    `json:"priority"`
}

type dispatchResponse struct {
	DispatchID string                 `json:"dispatch_id"`
	OrderID    string                 `json:"order_id"`
	Status     string                 `json:"status"`
	Candidates []dispatchCandidateDTO `json:"candidates"`
	AcceptedBy *string                `json:"accepted_by,omitempty"`
	ExpiresAt  string                 `json:"expires_at"`
}

func toDispatchResponse(d *dispatch.Dispatch) dispatchResponse {
	candidates := make([]dispatchCandidateDTO, 0, len(d.Candidates()))
	for _, c := range d.Candidates() {
		candidates = append(candidates, dispatchCandidateDTO{
			PartnerID:  c.PartnerID,
			DistanceKm: c.DistanceKm,
			Priority:   c.Priority,
		})
	}

	return dispatchResponse{
		DispatchID: d.ID(),
		OrderID:    d.OrderID(),
		Status:     string(d.Status()),
		Candidates: candidates,
		AcceptedBy: d.AcceptedBy(),
		ExpiresAt:  d.ExpiresAt().UTC().Format(time.RFC3339),
	}
}

type dispatchRequest struct {
	MaxPartners int `json:"max_partners,omitempty"`
}

type assignBestRequest struct {
	Strategy      string  `json:"strategy"`
	MaxDistanceKm float64 `json:"max_distance_km,omitempty"`
}

type assignBestResponse struct {
	PartnerID        string  `json:"partner_id"`
	DistanceKm       float64 `json:"distance_km"`
	Score            float64 `json:"score"`
	EstimatedMinutes float64 `json:"estimated_minutes"`
}

type createPartnerRequest struct {
	PartnerID     string `json:"partner_id,omitempty"`
	Name          string `json:"name"`
	PriorityClass bool   `json:"priority_class"`
	Vehicle       string `json:"vehicle"`
}

type partnerResponse struct {
	PartnerID       string       `json:"partner_id"`
	Name            string       `json:"name"`
	Online          bool         `json:"online"`
	Active          bool         `json:"active"`
	Rating          float64      `json:"rating"`
	TotalDeliveries int          `json:"total_deliveries"`
	PriorityClass   bool         `json:"priority_class"`
	Vehicle         string       `json:"vehicle"`
	Location        *geoPointDTO `json:"location,omitempty"`
}

func toPartnerResponse(p *partner.Partner) partnerResponse {
	resp := partnerResponse{
		PartnerID:       p.ID(),
		Name:            p.Name(),
		Online:          p.IsOnline(),
		Active:          p.IsActive(),
		Rating:          p.Rating(),
		TotalDeliveries: p.TotalDeliveries(),
		PriorityClass:   p.IsPriorityClass(),
		Vehicle:         string(p.Vehicle()),
	}
	if loc := p.CurrentLocation(); loc != nil {
		dto := toGeoPointDTO(*loc)
		resp.Location = &dto
	}
	return resp
}

type updateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
	At  string  `json:"at,omitempty"`
}

type geofenceEventDTO struct {
	GeofenceID string `json:"geofence_id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Kind       string `json:"kind"`
	SessionID  string `json:"session_id,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
}

type updateLocationResponse struct {
	PartnerID             string             `json:"partner_id"`
	GeofenceEvents        []geofenceEventDTO `json:"geofence_events"`
	EstimatedDeliveryTime *string            `json:"estimated_delivery_time,omitempty"`
}

func toUpdateLocationResponse(partnerID string, result trackingsvc.UpdateResult) updateLocationResponse {
	events := make([]geofenceEventDTO, 0, len(result.Events))
	for _, event := range result.Events {
		events = append(events, geofenceEventDTO{
			GeofenceID: event.GeofenceID,
			Name:       event.Name,
			Type:       string(event.Type),
			Kind:       string(event.Kind),
			SessionID:  event.SessionID,
			OrderID:    event.OrderID,
		})
	}

	resp := updateLocationResponse{PartnerID: partnerID, GeofenceEvents: events}
	if result.EstimatedDeliveryTime != nil {
		eta := result.EstimatedDeliveryTime.UTC().Format(time.RFC3339)
		resp.EstimatedDeliveryTime = &eta
	}
	return resp
}

type locationFixDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
	At  string  `json:"at"`
}

func toLocationFixDTO(fix trackingsvc.LocationFix) locationFixDTO {
	return locationFixDTO{
		Lat: fix.Point.Lat(),
		Lng: fix.Point.Lng(),
		At:  fix.At.UTC().Format(time.RFC3339),
	}
}

type partnerLocationResponse struct {
	PartnerID string           `json:"partner_id"`
	Current   locationFixDTO   `json:"current"`
	History   []locationFixDTO `json:"history"`
}

type completeTrackingRequest struct {
	Cancelled bool `json:"cancelled"`
}

type sessionResponse struct {
	SessionID             string      `json:"session_id"`
	OrderID               string      `json:"order_id"`
	PartnerID             string      `json:"partner_id"`
	Status                string      `json:"status"`
	CurrentLocation       geoPointDTO `json:"current_location"`
	DistanceTraveledKm    float64     `json:"distance_traveled_km"`
	EstimatedDeliveryTime *string     `json:"estimated_delivery_time,omitempty"`
}

func toSessionResponse(session *tracking.Session) sessionResponse {
	resp := sessionResponse{
		SessionID:          session.ID(),
		OrderID:            session.OrderID(),
		PartnerID:          session.PartnerID(),
		Status:             string(session.Status()),
		CurrentLocation:    toGeoPointDTO(session.CurrentLocation()),
		DistanceTraveledKm: session.DistanceTraveledKm(),
	}
	if eta := session.EstimatedDeliveryTime(); eta != nil {
		formatted := eta.UTC().Format(time.RFC3339)
		resp.EstimatedDeliveryTime = &formatted
	}
	return resp
}

type createGeofenceRequest struct {
	GeofenceID   string      `json:"geofence_id,omitempty"`
	Name         string      `json:"name"`
	Center       geoPointDTO `json:"center"`
	RadiusMeters float64     `json:"radius_meters"`
	Type         string      `json:"type"`
}

type geofenceResponse struct {
	GeofenceID   string      `json:"geofence_id"`
	Name         string      `json:"name"`
	Center       geoPointDTO `json:"center"`
	RadiusMeters float64     `json:"radius_meters"`
	Type         string      `json:"type"`
}

func toGeofenceResponse(g *tracking.Geofence) geofenceResponse {
	return geofenceResponse{
		GeofenceID:   g.ID(),
		Name:         g.Name(),
		Center:       toGeoPointDTO(g.Center()),
		RadiusMeters: g.RadiusMeters(),
		Type:         string(g.Type()),
	}
}

type activeOrderDTO struct {
	OrderID           string       `json:"order_id"`
	Status            string       `json:"status"`
	PaymentStatus     string       `json:"payment_status"`
	AssignedPartnerID *string      `json:"assigned_partner_id,omitempty"`
	DeliveryLocation  *geoPointDTO `json:"delivery_location,omitempty"`
	PlacedAt          string       `json:"placed_at"`
}

func toActiveOrderDTO(row queries.GetActiveOrdersQueryResponse) activeOrderDTO {
	dto := activeOrderDTO{
		OrderID:           row.ID,
		Status:            row.Status,
		PaymentStatus:     row.PaymentStatus,
		AssignedPartnerID: row.AssignedPartnerID,
		PlacedAt:          row.PlacedAt.UTC().Format(time.RFC3339),
	}
	if row.DeliveryLat != nil && row.DeliveryLng != nil {
		dto.DeliveryLocation = &geoPointDTO{Lat: *row.DeliveryLat, Lng: *row.DeliveryLng}
	}
	return dto
}

type onlinePartnerDTO struct {
	PartnerID       string       `json:"partner_id"`
	Name            string       `json:"name"`
	Rating          float64      `json:"rating"`
	TotalDeliveries int          `json:"total_deliveries"`
	PriorityClass   bool         `json:"priority_class"`
	Vehicle         string       `json:"vehicle"`
	Location        *geoPointDTO `json:"location,omitempty"`
}

func toOnlinePartnerDTO(row queries.GetOnlinePartnersQueryResponse) onlinePartnerDTO {
	dto := onlinePartnerDTO{
		PartnerID:       row.ID,
		Name:            row.Name,
		Rating:          row.Rating,
		TotalDeliveries: row.TotalDeliveries,
		PriorityClass:   row.PriorityClass,
		Vehicle:         row.Vehicle,
	}
	if row.CurrentLat != nil && row.CurrentLng != nil {
		dto.Location = &geoPointDTO{Lat: *row.CurrentLat, Lng: *row.CurrentLng}
	}
	return dto
}
