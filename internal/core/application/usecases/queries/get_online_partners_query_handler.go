package queries

import (
	"context"

	"gorm.io/gorm"
)

// GetOnlinePartnersQueryHandler reads the available partner directory
// straight from the database.
type GetOnlinePartnersQueryHandler struct {
	db *gorm.DB
}

// NewGetOnlinePartnersQueryHandler creates a handler for partner directory queries.
func NewGetOnlinePartnersQueryHandler(db *gorm.DB) GetOnlinePartnersQueryHandler {
	return GetOnlinePartnersQueryHandler{db: db}
}

// Handle returns every online, active partner sorted by name.
func (h GetOnlinePartnersQueryHandler) Handle(
	ctx context.Context,
	query GetOnlinePartnersQuery,
) ([]GetOnlinePartnersQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	partners := make([]GetOnlinePartnersQueryResponse, 0)

	rows, err := h.db.WithContext(ctx).Raw(`
		SELECT
			id,
			name,
			rating,
			total_deliveries,
			priority_class,
			vehicle,
			current_lat,
			current_lng
		FROM partners
		WHERE online = true AND active = true
		ORDER BY name, id
	`).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var resp GetOnlinePartnersQueryResponse
		if err = rows.Scan(
			&resp.ID,
			&resp.Name,
			&resp.Rating,
			&resp.TotalDeliveries,
			&resp.PriorityClass,
			&resp.Vehicle,
			&resp.CurrentLat,
			&resp.CurrentLng,
		); err != nil {
			return nil, err
		}
		partners = append(partners, resp)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return partners, nil
}
