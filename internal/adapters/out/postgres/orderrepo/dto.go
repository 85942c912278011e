// Package orderrepo persists order aggregates with GORM, mapping between
// the domain model and the relational schema.
package orderrepo

import (
	"time"

	"campusdelivery/internal/core/domain/model/kernel"
	"campusdelivery/internal/core/domain/model/order"
)

// OrderDTO is the database representation of an order aggregate.
type OrderDTO struct {
	ID                string `gorm:"type:uuid;primaryKey"`
	Status            string `gorm:"index"`
	PaymentStatus     string
	AssignedPartnerID *string `gorm:"type:uuid;index"`

	PlacedAt    time.Time
	PaidAt      *time.Time
	AcceptedAt  *time.Time
	PickedUpAt  *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time

	DeliveryLat *float64
	DeliveryLng *float64

	Items []ItemDTO `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// TableName overrides GORM's default naming to use "orders".
func (OrderDTO) TableName() string {
	return "orders"
}

// ItemDTO is one order line.
type ItemDTO struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	OrderID   string `gorm:"type:uuid;index"`
	ProductID string `gorm:"type:uuid"`
	Quantity  int
}

// TableName overrides GORM's default naming to use "order_items".
func (ItemDTO) TableName() string {
	return "order_items"
}

// fromDomain converts an order aggregate to its database representation.
func fromDomain(aggregate *order.Order) OrderDTO {
	ts := aggregate.Timestamps()

	dto := OrderDTO{
		ID:                aggregate.ID(),
		Status:            string(aggregate.Status()),
		PaymentStatus:     string(aggregate.PaymentStatus()),
		AssignedPartnerID: aggregate.AssignedPartnerID(),
		PlacedAt:          ts.PlacedAt,
		PaidAt:            ts.PaidAt,
		AcceptedAt:        ts.AcceptedAt,
		PickedUpAt:        ts.PickedUpAt,
		DeliveredAt:       ts.DeliveredAt,
		CancelledAt:       ts.CancelledAt,
	}

	if loc := aggregate.DeliveryLocation(); loc != nil {
		lat, lng := loc.Lat(), loc.Lng()
		dto.DeliveryLat = &lat
		dto.DeliveryLng = &lng
	}

	for _, item := range aggregate.Items() {
		dto.Items = append(dto.Items, ItemDTO{
			OrderID:   aggregate.ID(),
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	return dto
}

// toDomain reconstructs the order aggregate from its database row.
func toDomain(dto OrderDTO) (*order.Order, error) {
	status, err := order.ParseStatus(dto.Status)
	if err != nil {
		return nil, err
	}

	var location *kernel.GeoPoint
	if dto.DeliveryLat != nil && dto.DeliveryLng != nil {
		point, pointErr := kernel.NewGeoPoint(*dto.DeliveryLat, *dto.DeliveryLng)
		if pointErr != nil {
			return nil, pointErr
		}
		location = &point
	}

	items := make([]order.Item, 0, len(dto.Items))
	for _, item := range dto.Items {
		items = append(items, order.Item{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	return order.RestoreOrder(
		dto.ID,
		status,
		order.PaymentStatus(dto.PaymentStatus),
		dto.AssignedPartnerID,
		order.Timestamps{
			PlacedAt:    dto.PlacedAt,
			PaidAt:      dto.PaidAt,
			AcceptedAt:  dto.AcceptedAt,
			PickedUpAt:  dto.PickedUpAt,
			DeliveredAt: dto.DeliveredAt,
			CancelledAt: dto.CancelledAt,
		},
		items,
		location,
	)
}
