package sessionrepo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"campusdelivery/internal/core/domain/model/tracking"
)

// GormSessionArchive implements ports.TrackingSessionArchive using GORM.
type GormSessionArchive struct {
	db *gorm.DB
}

// NewGormSessionArchive creates a new GORM session archive.
func NewGormSessionArchive(db *gorm.DB) *GormSessionArchive {
	return &GormSessionArchive{db: db}
}

// ArchiveSession stores a sealed session. Archiving the same session twice
// updates the stored row; completion is the last write.
func (r *GormSessionArchive) ArchiveSession(ctx context.Context, session *tracking.Session) error {
	dto := fromDomain(session)
	return r.db.WithContext(ctx).Save(&dto).Error
}

// ListByPartner returns a partner's archived sessions since the given time,
// newest first.
func (r *GormSessionArchive) ListByPartner(ctx context.Context, partnerID string, since time.Time) ([]SessionDTO, error) {
	var dtos []SessionDTO
	err := r.db.WithContext(ctx).
		Where("partner_id = ? AND started_at >= ?", partnerID, since).
		Order("started_at DESC").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}
	return dtos, nil
}
