package dispatchsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"campusdelivery/internal/core/domain/model/dispatch"
	"campusdelivery/internal/core/domain/model/order"
	"campusdelivery/internal/core/domain/model/partner"
	"campusdelivery/internal/core/domain/services"
	"campusdelivery/internal/core/domain/workflow"
	"campusdelivery/internal/core/ports"
	"campusdelivery/internal/pkg/errs"
)

const (
	// OfferTTL is how long a broadcast offer stays open for acceptance.
	OfferTTL = 5 * time.Minute

	// expiredGrace is how long finished dispatches stay queryable before the
	// cleanup sweep removes them.
	expiredGrace = 10 * time.Minute

	// PriorityDailyCap limits how many broadcast acceptances a
	// priority-class partner gets per calendar day. A capped partner is
	// excluded from candidate search until the day rolls over.
	PriorityDailyCap = 3

	// MaxSearchRadiusKm is the outermost broadcast ring and the default
	// range and distance normalization bound for direct assignment.
	MaxSearchRadiusKm = 20.0

	// DefaultMaxCandidates caps a broadcast candidate set when the caller
	// does not ask for a specific size.
	DefaultMaxCandidates = 10

	// assignmentBuffer pads the travel-time estimate for pickup and handoff.
	assignmentBuffer = 10 * time.Minute
)

// searchRadiiKm are the expanding broadcast rings. The first ring is
// searched priority-only before any ring is opened to everyone.
var searchRadiiKm = []float64{5, 10, 15, 20}

var (
	// ErrNoPartnersAvailable means no partner is online and eligible at all.
	ErrNoPartnersAvailable = errors.New("no delivery partners are available")

	// ErrNoPartnersInRange means eligible partners exist, but all are beyond
	// the outermost search radius.
	ErrNoPartnersInRange = errors.New("no delivery partners within search range")

	// ErrOrderNotDispatchable means the order is not in the ready status.
	ErrOrderNotDispatchable = errors.New("order is not ready for dispatch")
)

// PartnerAssigner commits a won match to the order workflow. The
// orchestrator implements it.
type PartnerAssigner interface {
	HandlePartnerAssignment(ctx context.Context, orderID string, partnerID string) (workflow.TransitionEvent, error)
}

// AssignmentResult describes a direct best-partner assignment.
type AssignmentResult struct {
	PartnerID        string
	DistanceKm       float64
	Score            float64
	EstimatedMinutes float64
}

// entry wraps one live dispatch with its own lock and expiry timer. The
// per-dispatch lock resolves the accept race to exactly one winner.
type entry struct {
	mu       sync.Mutex
	dispatch *dispatch.Dispatch
	timer    *time.Timer
}

// Service owns the in-memory dispatch state and both matching modes.
type Service struct {
	uowFactory ports.UnitOfWorkFactory
	assigner   PartnerAssigner
	notifier   ports.NotificationPublisher
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	byOrder map[string]*entry

	// priority usage per partner, reset on calendar day rollover
	priorityDay  string
	priorityUsed map[string]int
}

// Option customizes a Service.
type Option func(*Service)

// WithTimeSource replaces the wall clock, for tests.
func WithTimeSource(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a dispatch service.
func NewService(
	uowFactory ports.UnitOfWorkFactory,
	assigner PartnerAssigner,
	notifier ports.NotificationPublisher,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		uowFactory:   uowFactory,
		assigner:     assigner,
		notifier:     notifier,
		logger:       logger.With("component", "dispatch"),
		now:          time.Now,
		byOrder:      make(map[string]*entry),
		priorityUsed: make(map[string]int),
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindAvailablePartners broadcasts a ready order to up to maxPartners
// candidates found in expanding search rings and returns the resulting
// offer. A maxPartners of zero or less means DefaultMaxCandidates.
//
// Priority-class partners get first pick of the innermost ring; the rings
// then expand outward, backfilling regular partners until the candidate set
// is full or the outermost ring is exhausted. Partners at their daily
// priority cap are excluded entirely until the day rolls over. Calling
// again while an offer for the order is still open returns the open offer.
func (s *Service) FindAvailablePartners(ctx context.Context, orderID string, maxPartners int) (*dispatch.Dispatch, error) {
	if maxPartners <= 0 {
		maxPartners = DefaultMaxCandidates
	}

	ord, err := s.loadDispatchableOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if open := s.openDispatch(orderID); open != nil {
		return open, nil
	}

	partners, err := s.eligiblePartners(ctx)
	if err != nil {
		return nil, err
	}
	partners = s.withPriorityAllowance(partners)
	if len(partners) == 0 {
		return nil, ErrNoPartnersAvailable
	}

	candidates := s.searchRings(partners, ord, maxPartners)
	if len(candidates) == 0 {
		return nil, ErrNoPartnersInRange
	}

	now := s.now()
	d, err := dispatch.NewDispatch(uuid.NewString(), orderID, candidates, now, now.Add(OfferTTL))
	if err != nil {
		return nil, err
	}

	e := &entry{dispatch: d}
	e.timer = time.AfterFunc(OfferTTL, func() {
		s.expireOffer(orderID)
	})

	s.mu.Lock()
	s.byOrder[orderID] = e
	s.mu.Unlock()

	for _, c := range candidates {
		msg := fmt.Sprintf("new delivery offer for order %s, %.1f km away", orderID, c.DistanceKm)
		if notifyErr := s.notifier.NotifyPartner(ctx, c.PartnerID, orderID, msg); notifyErr != nil {
			s.logger.WarnContext(ctx, "offer notification failed",
				"order_id", orderID, "partner_id", c.PartnerID, "error", notifyErr)
		}
	}

	e.mu.Lock()
	d.MarkMatched()
	e.mu.Unlock()

	s.logger.InfoContext(ctx, "dispatch broadcast",
		"order_id", orderID, "dispatch_id", d.ID(), "candidates", len(candidates))
	return d, nil
}

// AcceptOrder resolves a partner's acceptance of an open offer. The first
// valid acceptance wins and commits the assignment to the order workflow;
// every later attempt gets dispatch.ErrAlreadyAssigned.
func (s *Service) AcceptOrder(ctx context.Context, orderID string, partnerID string) (*dispatch.Dispatch, error) {
	if partnerID == "" {
		return nil, errs.NewValueIsRequiredError("partnerId")
	}

	s.mu.Lock()
	e, ok := s.byOrder[orderID]
	s.mu.Unlock()
	if !ok {
		return nil, errs.NewObjectNotFoundError("dispatch", orderID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.dispatch.Accept(partnerID, s.now()); err != nil {
		return nil, err
	}

	if _, err := s.assigner.HandlePartnerAssignment(ctx, orderID, partnerID); err != nil {
		// the order may have been cancelled while the offer was open
		e.dispatch.Reopen()
		return nil, err
	}

	if s.candidateIsPriority(e.dispatch, partnerID) {
		s.recordPriorityUse(partnerID)
	}
	if e.timer != nil {
		e.timer.Stop()
	}

	s.logger.InfoContext(ctx, "dispatch accepted",
		"order_id", orderID, "dispatch_id", e.dispatch.ID(), "partner_id", partnerID)
	return e.dispatch, nil
}

// AssignBestPartner scores every eligible partner within maxDistanceKm with
// the given strategy and assigns the winner directly. A maxDistanceKm of
// zero or less means MaxSearchRadiusKm.
func (s *Service) AssignBestPartner(ctx context.Context, orderID string, strategy services.Strategy, maxDistanceKm float64) (AssignmentResult, error) {
	if maxDistanceKm <= 0 {
		maxDistanceKm = MaxSearchRadiusKm
	}

	ord, err := s.loadDispatchableOrder(ctx, orderID)
	if err != nil {
		return AssignmentResult{}, err
	}

	scorer, err := services.NewPartnerScorer(strategy)
	if err != nil {
		return AssignmentResult{}, err
	}

	partners, err := s.eligiblePartners(ctx)
	if err != nil {
		return AssignmentResult{}, err
	}
	if len(partners) == 0 {
		return AssignmentResult{}, ErrNoPartnersAvailable
	}

	var candidates []services.Candidate
	for _, p := range partners {
		distanceKm, distErr := p.CurrentLocation().DistanceKm(*ord.DeliveryLocation())
		if distErr != nil || distanceKm > maxDistanceKm {
			continue
		}
		candidates = append(candidates, services.Candidate{Partner: p, DistanceKm: distanceKm})
	}
	if len(candidates) == 0 {
		return AssignmentResult{}, ErrNoPartnersInRange
	}

	now := s.now()
	best := scorer.SelectBest(candidates, maxDistanceKm, now)

	if _, err = s.assigner.HandlePartnerAssignment(ctx, orderID, best.Partner.ID()); err != nil {
		return AssignmentResult{}, err
	}

	eta := best.Partner.EstimateTravelTime(best.DistanceKm) + assignmentBuffer

	s.logger.InfoContext(ctx, "best partner assigned",
		"order_id", orderID, "partner_id", best.Partner.ID(),
		"distance_km", best.DistanceKm, "max_distance_km", maxDistanceKm, "strategy", string(strategy))

	return AssignmentResult{
		PartnerID:        best.Partner.ID(),
		DistanceKm:       best.DistanceKm,
		Score:            scorer.Score(*best, maxDistanceKm, now),
		EstimatedMinutes: eta.Minutes(),
	}, nil
}

// GetDispatch returns the current offer of an order, if one is tracked.
func (s *Service) GetDispatch(_ context.Context, orderID string) (*dispatch.Dispatch, error) {
	s.mu.Lock()
	e, ok := s.byOrder[orderID]
	s.mu.Unlock()
	if !ok {
		return nil, errs.NewObjectNotFoundError("dispatch", orderID)
	}

	return e.dispatch, nil
}

// SweepExpired expires overdue offers that missed their timer and drops
// finished dispatches past the grace period. Run by the cleanup job.
func (s *Service) SweepExpired(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	entries := make(map[string]*entry, len(s.byOrder))
	for orderID, e := range s.byOrder {
		entries[orderID] = e
	}
	s.mu.Unlock()

	removed := 0
	for orderID, e := range entries {
		e.mu.Lock()
		if e.dispatch.Expire(now) {
			s.notifyExpired(ctx, orderID)
		}
		done := e.dispatch.Status() == dispatch.StatusAccepted || e.dispatch.Status() == dispatch.StatusExpired
		gcAfter := e.dispatch.ExpiresAt().Add(expiredGrace)
		e.mu.Unlock()

		if done && now.After(gcAfter) {
			s.mu.Lock()
			if s.byOrder[orderID] == e {
				delete(s.byOrder, orderID)
				removed++
			}
			s.mu.Unlock()
		}
	}

	if removed > 0 {
		s.logger.InfoContext(ctx, "dispatch sweep", "removed", removed)
	}
	return removed
}

// Stop cancels every pending offer expiry timer.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.byOrder {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
}

// expireOffer is the offer timer callback.
func (s *Service) expireOffer(orderID string) {
	s.mu.Lock()
	e, ok := s.byOrder[orderID]
	s.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	expired := e.dispatch.Expire(s.now())
	e.mu.Unlock()

	if expired {
		s.notifyExpired(context.Background(), orderID)
	}
}

func (s *Service) notifyExpired(ctx context.Context, orderID string) {
	msg := fmt.Sprintf("no partner accepted order %s within %s", orderID, OfferTTL)
	if err := s.notifier.NotifyAdmin(ctx, orderID, msg); err != nil {
		s.logger.WarnContext(ctx, "expiry alert failed", "order_id", orderID, "error", err)
	}
}

// searchRings walks the expanding radius rings and gathers up to
// maxPartners candidates. Priority-class partners in the innermost ring are
// taken first; regular partners backfill ring by ring until the set is full.
func (s *Service) searchRings(partners []*partner.Partner, ord *order.Order, maxPartners int) []dispatch.Candidate {
	type located struct {
		p          *partner.Partner
		distanceKm float64
		priority   bool
	}

	var reachable []located
	for _, p := range partners {
		distanceKm, err := p.CurrentLocation().DistanceKm(*ord.DeliveryLocation())
		if err != nil || distanceKm > MaxSearchRadiusKm {
			continue
		}
		reachable = append(reachable, located{
			p:          p,
			distanceKm: distanceKm,
			priority:   p.IsPriorityClass(),
		})
	}

	var out []dispatch.Candidate
	taken := make(map[string]bool)
	collect := func(radiusKm float64, priorityOnly bool) {
		for _, l := range reachable {
			if len(out) >= maxPartners {
				return
			}
			if l.distanceKm > radiusKm || taken[l.p.ID()] {
				continue
			}
			if priorityOnly && !l.priority {
				continue
			}
			taken[l.p.ID()] = true
			out = append(out, dispatch.Candidate{
				PartnerID:      l.p.ID(),
				DistanceKm:     l.distanceKm,
				Priority:       l.priority,
				SearchRadiusKm: radiusKm,
			})
		}
	}

	collect(searchRadiiKm[0], true)
	for _, radiusKm := range searchRadiiKm {
		if len(out) >= maxPartners {
			break
		}
		collect(radiusKm, false)
	}
	return out
}

// withPriorityAllowance drops priority-class partners that used up today's
// acceptance cap. They re-enter the candidate pool at midnight.
func (s *Service) withPriorityAllowance(partners []*partner.Partner) []*partner.Partner {
	var kept []*partner.Partner
	for _, p := range partners {
		if p.IsPriorityClass() && !s.priorityAllowance(p.ID()) {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// openDispatch returns the order's offer when one is still open for
// acceptance.
func (s *Service) openDispatch(orderID string) *dispatch.Dispatch {
	s.mu.Lock()
	e, ok := s.byOrder[orderID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.dispatch.Status() {
	case dispatch.StatusPending, dispatch.StatusMatched:
		return e.dispatch
	default:
		return nil
	}
}

func (s *Service) loadDispatchableOrder(ctx context.Context, orderID string) (*order.Order, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	ord, err := uow.OrderRepository().Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err = uow.Commit(ctx); err != nil {
		return nil, err
	}

	if ord.Status() != order.StatusReady {
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderNotDispatchable, orderID, ord.Status())
	}
	if ord.DeliveryLocation() == nil {
		return nil, errs.NewValueIsRequiredError("deliveryLocation")
	}
	return ord, nil
}

// eligiblePartners returns online, enabled partners with a known position.
func (s *Service) eligiblePartners(ctx context.Context) ([]*partner.Partner, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	online, err := uow.PartnerRepository().GetAllOnline(ctx)
	if err != nil {
		return nil, err
	}
	if err = uow.Commit(ctx); err != nil {
		return nil, err
	}

	var eligible []*partner.Partner
	for _, p := range online {
		if p.IsActive() && p.CurrentLocation() != nil {
			eligible = append(eligible, p)
		}
	}
	return eligible, nil
}

// priorityAllowance reports whether the partner still has priority
// treatment left today.
func (s *Service) priorityAllowance(partnerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rolloverDayLocked()
	return s.priorityUsed[partnerID] < PriorityDailyCap
}

func (s *Service) recordPriorityUse(partnerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rolloverDayLocked()
	s.priorityUsed[partnerID]++
}

// rolloverDayLocked resets priority usage on calendar day change. Caller
// must hold s.mu.
func (s *Service) rolloverDayLocked() {
	today := s.now().Format("2006-01-02")
	if s.priorityDay != today {
		s.priorityDay = today
		s.priorityUsed = make(map[string]int)
	}
}

func (s *Service) candidateIsPriority(d *dispatch.Dispatch, partnerID string) bool {
	for _, c := range d.Candidates() {
		if c.PartnerID == partnerID {
			return c.Priority
		}
	}
	return false
}
