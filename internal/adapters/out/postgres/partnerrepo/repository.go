package partnerrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"campusdelivery/internal/core/domain/model/partner"
	"campusdelivery/internal/pkg/errs"
)

// aggregateTracker records aggregates modified within the unit of work.
type aggregateTracker interface {
	TrackAggregate(id string, aggregate any)
}

// GormPartnerRepository implements ports.PartnerRepository using GORM.
type GormPartnerRepository struct {
	db      *gorm.DB
	tracker aggregateTracker
}

// NewGormPartnerRepository creates a new GORM partner repository.
func NewGormPartnerRepository(db *gorm.DB, tracker aggregateTracker) *GormPartnerRepository {
	return &GormPartnerRepository{
		db:      db,
		tracker: tracker,
	}
}

// Add saves a new delivery partner.
func (r *GormPartnerRepository) Add(ctx context.Context, aggregate *partner.Partner) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		return err
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

// Update saves the current state of an existing partner. Select("*") forces
// nil columns through, so a partner that drops their location actually
// clears it in the database.
func (r *GormPartnerRepository) Update(ctx context.Context, aggregate *partner.Partner) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	result := r.db.WithContext(ctx).
		Model(&PartnerDTO{}).
		Where("id = ?", dto.ID).
		Select("*").
		Omit("id").
		Updates(&dto)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewObjectNotFoundError("partner", dto.ID)
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

// Get retrieves a partner by id.
func (r *GormPartnerRepository) Get(ctx context.Context, id string) (*partner.Partner, error) {
	if id == "" {
		return nil, errs.NewValueIsRequiredError("partnerId")
	}

	var dto PartnerDTO
	err := r.db.WithContext(ctx).First(&dto, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("partner", id)
		}
		return nil, err
	}

	return toDomain(dto)
}

// GetAllOnline retrieves every partner that is both online and active.
func (r *GormPartnerRepository) GetAllOnline(ctx context.Context) ([]*partner.Partner, error) {
	var dtos []PartnerDTO
	err := r.db.WithContext(ctx).
		Find(&dtos, "online = ? AND active = ?", true, true).Error
	if err != nil {
		return nil, err
	}

	aggregates := make([]*partner.Partner, 0, len(dtos))
	for _, dto := range dtos {
		aggregate, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		aggregates = append(aggregates, aggregate)
	}
	return aggregates, nil
}
