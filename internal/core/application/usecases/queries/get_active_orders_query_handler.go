package queries

import (
	"context"

	"gorm.io/gorm"

	"campusdelivery/internal/core/domain/model/order"
)

// GetActiveOrdersQueryHandler reads in-flight orders straight from the
// database, skipping aggregate hydration.
type GetActiveOrdersQueryHandler struct {
	db *gorm.DB
}

// NewGetActiveOrdersQueryHandler creates a handler for active order queries.
func NewGetActiveOrdersQueryHandler(db *gorm.DB) GetActiveOrdersQueryHandler {
	return GetActiveOrdersQueryHandler{db: db}
}

// Handle returns every order in a non-terminal status, oldest first.
func (h GetActiveOrdersQueryHandler) Handle(
	ctx context.Context,
	query GetActiveOrdersQuery,
) ([]GetActiveOrdersQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	terminal := []string{
		string(order.StatusDelivered),
		string(order.StatusCancelled),
		string(order.StatusFailed),
		string(order.StatusRefunded),
	}

	orders := make([]GetActiveOrdersQueryResponse, 0)

	rows, err := h.db.WithContext(ctx).Raw(`
		SELECT
			id,
			status,
			payment_status,
			assigned_partner_id,
			delivery_lat,
			delivery_lng,
			placed_at
		FROM orders
		WHERE status NOT IN ?
		ORDER BY placed_at, id
	`, terminal).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var resp GetActiveOrdersQueryResponse
		if err = rows.Scan(
			&resp.ID,
			&resp.Status,
			&resp.PaymentStatus,
			&resp.AssignedPartnerID,
			&resp.DeliveryLat,
			&resp.DeliveryLng,
			&resp.PlacedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, resp)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
