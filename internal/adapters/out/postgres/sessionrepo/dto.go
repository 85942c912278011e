// Package sessionrepo archives finished tracking sessions with GORM. The
// live session state stays in the tracking service; the archive keeps the
// historical record.
package sessionrepo

import (
	"time"

	"campusdelivery/internal/core/domain/model/tracking"
)

// SessionDTO is the database representation of an archived tracking session.
type SessionDTO struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	OrderID   string `gorm:"type:uuid;index"`
	PartnerID string `gorm:"type:uuid;index"`
	Status    string

	StartLat   float64
	StartLng   float64
	CurrentLat float64
	CurrentLng float64

	DistanceTraveledKm  float64
	StartedAt           time.Time
	CompletedAt         *time.Time
	EstimatedDeliveryAt *time.Time
}

// TableName overrides GORM's default naming to use "tracking_sessions".
func (SessionDTO) TableName() string {
	return "tracking_sessions"
}

// fromDomain converts a session to its database representation.
func fromDomain(session *tracking.Session) SessionDTO {
	start := session.StartLocation()
	current := session.CurrentLocation()

	return SessionDTO{
		ID:                  session.ID(),
		OrderID:             session.OrderID(),
		PartnerID:           session.PartnerID(),
		Status:              string(session.Status()),
		StartLat:            start.Lat(),
		StartLng:            start.Lng(),
		CurrentLat:          current.Lat(),
		CurrentLng:          current.Lng(),
		DistanceTraveledKm:  session.DistanceTraveledKm(),
		StartedAt:           session.StartTime(),
		CompletedAt:         session.CompletedAt(),
		EstimatedDeliveryAt: session.EstimatedDeliveryTime(),
	}
}
