// Package notification delivers fire-and-forget notifications to order
// participants. The current implementation writes structured log records;
// swapping in a push or SMS gateway only requires another
// ports.NotificationPublisher implementation.
package notification

import (
	"context"
	"log/slog"
)

// SlogPublisher implements ports.NotificationPublisher on top of slog.
type SlogPublisher struct {
	logger *slog.Logger
}

// NewSlogPublisher creates a publisher writing to the given logger.
func NewSlogPublisher(logger *slog.Logger) *SlogPublisher {
	return &SlogPublisher{
		logger: logger.With("component", "notification"),
	}
}

func (p *SlogPublisher) NotifyCustomer(_ context.Context, orderID string, message string) error {
	p.logger.Info("customer notification",
		"audience", "customer",
		"order_id", orderID,
		"message", message)
	return nil
}

func (p *SlogPublisher) NotifyPartner(_ context.Context, partnerID string, orderID string, message string) error {
	p.logger.Info("partner notification",
		"audience", "partner",
		"partner_id", partnerID,
		"order_id", orderID,
		"message", message)
	return nil
}

func (p *SlogPublisher) NotifyAdmin(_ context.Context, orderID string, message string) error {
	p.logger.Info("admin notification",
		"audience", "admin",
		"order_id", orderID,
		"message", message)
	return nil
}
