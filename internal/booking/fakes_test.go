package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/recantodasaguas/reservation-api/internal/availability"
	"github.com/recantodasaguas/reservation-api/internal/gateway/asaas"
	"github.com/recantodasaguas/reservation-api/internal/model"
	"github.com/recantodasaguas/reservation-api/internal/repository"
)

// memStore is an in-memory stand-in for all four persistence ports.  It
// mimics the repository contracts closely enough for orchestrator tests:
// sentinel errors, copy-on-read, and a per-date cabin delta ledger.
type memStore struct {
	mu sync.Mutex

	reservations map[uint64]*model.Reservation
	history      map[uint64][]model.HistoryEntry
	nextResID    uint64

	payments  map[uint64]*model.Payment
	nextPayID uint64

	cabinDelta map[string]int // date -> cumulative AdjustCabins delta

	guests      map[string]*model.Guest // by document
	nextGuestID uint64

	failCreate error // injected Create failure
}

func newMemStore() *memStore {
	return &memStore{
		reservations: map[uint64]*model.Reservation{},
		history:      map[uint64][]model.HistoryEntry{},
		payments:     map[uint64]*model.Payment{},
		cabinDelta:   map[string]int{},
		guests:       map[string]*model.Guest{},
	}
}

func (m *memStore) Create(_ context.Context, res *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	m.nextResID++
	res.ID = m.nextResID
	res.Code = fmt.Sprintf("RSV-%d", res.ID)
	res.CreatedAt = time.Now()
	cp := *res
	m.reservations[res.ID] = &cp
	m.history[res.ID] = append(m.history[res.ID], model.HistoryEntry{
		ReservationID: res.ID, Action: "created",
	})
	return nil
}

func (m *memStore) FindByID(_ context.Context, id uint64) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

func (m *memStore) FindByCode(_ context.Context, code string) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, res := range m.reservations {
		if res.Code == code {
			cp := *res
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) UpdateStatus(_ context.Context, id uint64, status model.ReservationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.reservations[id]
	if !ok {
		return repository.ErrNotFound
	}
	res.Status = status
	return nil
}

func (m *memStore) AppendHistory(_ context.Context, id uint64, action, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[id] = append(m.history[id], model.HistoryEntry{
		ReservationID: id, Action: action, Detail: detail,
	})
	return nil
}

func (m *memStore) CreateWithHistory(_ context.Context, p *model.Payment, action, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPayID++
	p.ID = m.nextPayID
	p.CreatedAt = time.Now()
	cp := *p
	m.payments[p.ID] = &cp
	m.history[p.ReservationID] = append(m.history[p.ReservationID], model.HistoryEntry{
		ReservationID: p.ReservationID, Action: action, Detail: detail,
	})
	return nil
}

func (m *memStore) FindActiveByReservation(_ context.Context, reservationID uint64) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.Payment
	for _, p := range m.payments {
		if p.ReservationID != reservationID {
			continue
		}
		if p.Status == model.PaymentCancelled || p.Status == model.PaymentRefunded {
			continue
		}
		if latest == nil || p.ID > latest.ID {
			latest = p
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memStore) ListByReservation(_ context.Context, reservationID uint64) ([]model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Payment
	for _, p := range m.payments {
		if p.ReservationID == reservationID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) FindByGatewayID(_ context.Context, gatewayID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ChargeID == gatewayID || p.CheckoutID == gatewayID || p.LegacyID == gatewayID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) Update(_ context.Context, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *memStore) FindExpiredPending(_ context.Context, before time.Time) ([]model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Payment
	for _, p := range m.payments {
		if p.Status == model.PaymentPending && p.CreatedAt.Before(before) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) AdjustCabins(_ context.Context, date time.Time, delta, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cabinDelta[date.Format("2006-01-02")] += delta
	return nil
}

func (m *memStore) FindOrCreate(_ context.Context, g *model.Guest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.guests[g.Document]; ok {
		g.ID = existing.ID
		g.GatewayRef = existing.GatewayRef
		return nil
	}
	m.nextGuestID++
	g.ID = m.nextGuestID
	cp := *g
	m.guests[g.Document] = &cp
	return nil
}

func (m *memStore) UpdateGatewayRef(_ context.Context, id uint64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.guests {
		if g.ID == id {
			g.GatewayRef = ref
			return nil
		}
	}
	return repository.ErrNotFound
}

// status lifts the stored reservation status without copy indirection.
func (m *memStore) status(id uint64) model.ReservationStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reservations[id].Status
}

func (m *memStore) paymentStatus(id uint64) model.PaymentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payments[id].Status
}

func (m *memStore) actions(resID uint64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.history[resID]))
	for _, e := range m.history[resID] {
		out = append(out, e.Action)
	}
	return out
}

// fakeChecker answers every range check with a fixed decision.
type fakeChecker struct {
	decision availability.Decision
}

func (f *fakeChecker) CheckRange(context.Context, time.Time, time.Time, model.ReservationType, int) (availability.Decision, error) {
	return f.decision, nil
}

// fakeGateway is an in-memory payment provider.
type fakeGateway struct {
	mu           sync.Mutex
	failCharges  bool
	nextCharge   int
	statuses     map[string]string // charge id -> native status
	cancelled    []string
	customerRefs int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: map[string]string{}}
}

func (g *fakeGateway) FindOrCreateCustomer(context.Context, asaas.Customer) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customerRefs++
	return fmt.Sprintf("cus_%d", g.customerRefs), nil
}

func (g *fakeGateway) CreateCharge(_ context.Context, req asaas.ChargeRequest) (*asaas.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCharges {
		return nil, fmt.Errorf("%w: boleto service offline", asaas.ErrGateway)
	}
	g.nextCharge++
	id := fmt.Sprintf("pay_%d", g.nextCharge)
	g.statuses[id] = "PENDING"
	return &asaas.Charge{ID: id, Status: "PENDING", PaymentLink: "https://pay.example/" + id}, nil
}

func (g *fakeGateway) ChargeStatus(_ context.Context, chargeID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.statuses[chargeID]
	if !ok {
		return "", fmt.Errorf("%w: unknown charge %s", asaas.ErrGateway, chargeID)
	}
	return st, nil
}

func (g *fakeGateway) CancelCharge(_ context.Context, chargeID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, chargeID)
	g.statuses[chargeID] = "DELETED"
	return true, nil
}

func (g *fakeGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nextCharge
}

// fakeNotifier records every notification it receives.
type fakeNotifier struct {
	mu    sync.Mutex
	kinds []string
}

func (n *fakeNotifier) record(kind string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
	return nil
}

func (n *fakeNotifier) ReservationCreated(_ context.Context, _ *model.Reservation, _ string) error {
	return n.record("created")
}

func (n *fakeNotifier) ReservationConfirmed(_ context.Context, _ *model.Reservation) error {
	return n.record("confirmed")
}

func (n *fakeNotifier) ReservationCanceled(_ context.Context, _ *model.Reservation, _ string) error {
	return n.record("canceled")
}

func (n *fakeNotifier) PaymentStatusChanged(_ context.Context, _ *model.Reservation, _ model.PaymentStatus, _ string) error {
	return n.record("payment_status")
}

func (n *fakeNotifier) seen(kind string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, k := range n.kinds {
		if k == kind {
			return true
		}
	}
	return false
}
