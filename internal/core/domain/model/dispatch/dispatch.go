// Package dispatch contains the transient broadcast-matching record that
// offers an order to several delivery partners simultaneously.
//
// A Dispatch is in-memory state owned by the dispatch service: it is created
// when candidates are searched, accepted by the first partner that wins the
// accept race, expired by a timer when nobody accepts, and garbage-collected
// after a grace period.
package dispatch

import (
	"errors"
	"time"

	"campusdelivery/internal/pkg/errs"
)

// ErrAlreadyAssigned is returned to every acceptance attempt that loses the
// accept race or arrives after the dispatch expired.
var ErrAlreadyAssigned = errors.New("order is already assigned or dispatch expired")

// ErrDispatchIsNotConstructed is returned when a Dispatch instance was not
// created through the NewDispatch factory method.
var ErrDispatchIsNotConstructed = errors.New("Dispatch must be created via NewDispatch")

// Status represents the lifecycle state of a dispatch.
type Status string

const (
	// StatusPending means the dispatch was created and candidates are being
	// notified.
	StatusPending Status = "pending"
	// StatusMatched means all candidates were notified and the dispatch is
	// waiting for the first acceptance.
	StatusMatched Status = "matched"
	// StatusAccepted means a partner won the accept race.
	StatusAccepted Status = "accepted"
	// StatusExpired means the dispatch timed out without acceptance.
	StatusExpired Status = "expired"
)

// Candidate is one partner matched during the dispatch search, together with
// the search context that produced it.
type Candidate struct {
	PartnerID      string
	DistanceKm     float64
	Priority       bool
	SearchRadiusKm float64
}

// Dispatch offers one order to a set of matched candidates until one of them
// accepts or the offer expires. All mutating methods assume external
// serialization: the owning service guards each dispatch with a lock so the
// accept race resolves to exactly one winner.
type Dispatch struct {
	id         string
	orderID    string
	candidates []Candidate
	status     Status
	createdAt  time.Time
	expiresAt  time.Time
	acceptedBy *string

	isConstructed bool
}

// NewDispatch creates a pending dispatch for an order with the given matched
// candidates and absolute expiry time.
func NewDispatch(id string, orderID string, candidates []Candidate, createdAt time.Time, expiresAt time.Time) (*Dispatch, error) {
	if id == "" {
		return nil, errs.NewValueIsRequiredError("dispatchId")
	}
	if orderID == "" {
		return nil, errs.NewValueIsRequiredError("orderId")
	}
	if !expiresAt.After(createdAt) {
		return nil, errs.NewValueIsInvalidErrorWithCause("expiresAt",
			errors.New("expiry must be after creation"))
	}

	return &Dispatch{
		id:            id,
		orderID:       orderID,
		candidates:    candidates,
		status:        StatusPending,
		createdAt:     createdAt,
		expiresAt:     expiresAt,
		isConstructed: true,
	}, nil
}

// Validate ensures the Dispatch was created through NewDispatch.
func (d *Dispatch) Validate() error {
	if d == nil || !d.isConstructed {
		return ErrDispatchIsNotConstructed
	}
	return nil
}

// ID returns the dispatch identifier.
func (d *Dispatch) ID() string {
	return d.id
}

// OrderID returns the order this dispatch offers.
func (d *Dispatch) OrderID() string {
	return d.orderID
}

// Candidates returns the matched candidates.
func (d *Dispatch) Candidates() []Candidate {
	return d.candidates
}

// Status returns the current lifecycle state.
func (d *Dispatch) Status() Status {
	return d.status
}

// CreatedAt returns when the dispatch was created.
func (d *Dispatch) CreatedAt() time.Time {
	return d.createdAt
}

// ExpiresAt returns the absolute expiry time of the offer.
func (d *Dispatch) ExpiresAt() time.Time {
	return d.expiresAt
}

// AcceptedBy returns the winning partner id, or nil while nobody accepted.
func (d *Dispatch) AcceptedBy() *string {
	return d.acceptedBy
}

// HasCandidate reports whether the partner is among the matched candidates.
func (d *Dispatch) HasCandidate(partnerID string) bool {
	for _, c := range d.candidates {
		if c.PartnerID == partnerID {
			return true
		}
	}
	return false
}

// MarkMatched records that candidate notification fan-out completed. The
// dispatch keeps accepting from either pending or matched, so a fast partner
// may win before fan-out finishes.
func (d *Dispatch) MarkMatched() {
	if d.status == StatusPending {
		d.status = StatusMatched
	}
}

// Accept resolves an acceptance attempt by a partner at the given time.
//
// The attempt succeeds only if the partner is among the matched candidates,
// the dispatch has not been accepted yet, and the offer has not expired.
// Losers receive ErrAlreadyAssigned; partners that were never matched
// receive an object-not-found error.
func (d *Dispatch) Accept(partnerID string, now time.Time) error {
	if !d.HasCandidate(partnerID) {
		return errs.NewObjectNotFoundError("partnerId", partnerID)
	}
	if d.status != StatusPending && d.status != StatusMatched {
		return ErrAlreadyAssigned
	}
	if !now.Before(d.expiresAt) {
		d.status = StatusExpired
		return ErrAlreadyAssigned
	}

	d.status = StatusAccepted
	d.acceptedBy = &partnerID
	return nil
}

// Reopen reverts an acceptance whose downstream order assignment failed,
// putting the offer back up for the remaining candidates. A no-op unless the
// dispatch is currently accepted.
func (d *Dispatch) Reopen() {
	if d.status != StatusAccepted {
		return
	}

	d.status = StatusMatched
	d.acceptedBy = nil
}

// Expire flips the dispatch to expired if nobody accepted. Returns true when
// the state actually changed, so the caller can tell a real expiry from a
// late timer firing against an accepted dispatch.
func (d *Dispatch) Expire(now time.Time) bool {
	if d.status == StatusAccepted || d.status == StatusExpired {
		return false
	}
	if now.Before(d.expiresAt) {
		return false
	}

	d.status = StatusExpired
	return true
}
