package tests

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"carshare/internal/domain"
	"carshare/internal/redis"
	"carshare/internal/repository"
)

// ──────────────────────────────────────────────
// READ BARRIER
// ──────────────────────────────────────────────

// Barrier holds the first n arrivals until all of them have arrived, or until
// the timeout passes. It opens once; later arrivals pass straight through.
type Barrier struct {
	mu      sync.Mutex
	n       int
	arrived int
	open    chan struct{}
	timeout time.Duration
}

// NewBarrier creates a barrier for n arrivals.
func NewBarrier(n int, timeout time.Duration) *Barrier {
	return &Barrier{n: n, open: make(chan struct{}), timeout: timeout}
}

// Wait blocks the caller until the barrier opens.
func (b *Barrier) Wait() {
	b.mu.Lock()
	b.arrived++
	if b.arrived == b.n {
		close(b.open)
	}
	b.mu.Unlock()

	select {
	case <-b.open:
	case <-time.After(b.timeout):
	}
}

// ──────────────────────────────────────────────
// MOCK BOOKING REPOSITORY
// ──────────────────────────────────────────────

// MockBookingRepository is an in-memory BookingRepository with version checks.
type MockBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*domain.Booking

	// ReadBarrier, when set, holds GetByID after the snapshot is taken so that
	// concurrent callers all read the same version.
	ReadBarrier *Barrier

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	UpdateError error
}

// NewMockBookingRepository creates a new mock booking repository.
func NewMockBookingRepository() *MockBookingRepository {
	return &MockBookingRepository{
		bookings: make(map[string]*domain.Booking),
	}
}

// AddBooking stores a booking as-is (for test setup).
func (m *MockBookingRepository) AddBooking(b *domain.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.Version == 0 {
		b.Version = 1
	}
	m.bookings[b.ID] = copyBooking(b)
}

func (m *MockBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bookings[b.ID]; exists {
		return repository.ErrDuplicate
	}
	b.Version = 1
	m.bookings[b.ID] = copyBooking(b)
	return nil
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	m.mu.RLock()
	b, ok := m.bookings[id]
	var snapshot *domain.Booking
	if ok {
		snapshot = copyBooking(b)
	}
	m.mu.RUnlock()

	if !ok {
		return nil, repository.ErrNotFound
	}
	if m.ReadBarrier != nil {
		m.ReadBarrier.Wait()
	}
	return snapshot, nil
}

func (m *MockBookingRepository) Update(ctx context.Context, b *domain.Booking, expectedVersion int64) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.bookings[b.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	b.Version = expectedVersion + 1
	m.bookings[b.ID] = copyBooking(b)
	return nil
}

func (m *MockBookingRepository) ListByProvider(ctx context.Context, providerID string) ([]*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Booking, 0)
	for _, b := range m.bookings {
		if b.ProviderID == providerID {
			result = append(result, copyBooking(b))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *MockBookingRepository) SumNetByProvider(ctx context.Context, providerID string, status domain.BookingStatus, currency string) (domain.Money, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := domain.ZeroMoney(currency)
	for _, b := range m.bookings {
		if b.ProviderID == providerID && b.Status == status && b.NetAmount.Currency == total.Currency {
			total.Amount += b.NetAmount.Amount
		}
	}
	return total, nil
}

// GetBooking returns the stored booking for test assertions.
func (m *MockBookingRepository) GetBooking(id string) *domain.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil
	}
	return copyBooking(b)
}

func copyBooking(b *domain.Booking) *domain.Booking {
	c := *b
	c.StatusHistory = append([]domain.StatusChange(nil), b.StatusHistory...)
	return &c
}

// ──────────────────────────────────────────────
// MOCK WITHDRAWAL REPOSITORY
// ──────────────────────────────────────────────

// MockWithdrawalRepository is an in-memory WithdrawalRepository with a balance
// token per owner.
type MockWithdrawalRepository struct {
	mu          sync.RWMutex
	withdrawals map[string]*domain.WithdrawalRequest
	versions    map[string]int64
	references  map[string]bool

	// VersionBarrier, when set, holds BalanceVersion after the token is read.
	VersionBarrier *Barrier

	// Counters for verification
	CreateCallCount int32

	// Error injection: returned by the next CreateWithVersion calls, one per call.
	CreateErrors []error
}

// NewMockWithdrawalRepository creates a new mock withdrawal repository.
func NewMockWithdrawalRepository() *MockWithdrawalRepository {
	return &MockWithdrawalRepository{
		withdrawals: make(map[string]*domain.WithdrawalRequest),
		versions:    make(map[string]int64),
		references:  make(map[string]bool),
	}
}

func (m *MockWithdrawalRepository) BalanceVersion(ctx context.Context, ownerID string) (int64, error) {
	m.mu.RLock()
	version := m.versions[ownerID]
	m.mu.RUnlock()

	if m.VersionBarrier != nil {
		m.VersionBarrier.Wait()
	}
	return version, nil
}

func (m *MockWithdrawalRepository) CreateWithVersion(ctx context.Context, w *domain.WithdrawalRequest, expectedVersion int64) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.CreateErrors) > 0 {
		err := m.CreateErrors[0]
		m.CreateErrors = m.CreateErrors[1:]
		if err != nil {
			return err
		}
	}
	if m.versions[w.OwnerID] != expectedVersion {
		return repository.ErrVersionConflict
	}
	if m.references[w.Reference] {
		return repository.ErrDuplicate
	}

	m.versions[w.OwnerID] = expectedVersion + 1
	m.references[w.Reference] = true
	stored := *w
	m.withdrawals[w.ID] = &stored
	return nil
}

func (m *MockWithdrawalRepository) GetByID(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.withdrawals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *w
	return &copy, nil
}

func (m *MockWithdrawalRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.WithdrawalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.WithdrawalRequest, 0)
	for _, w := range m.withdrawals {
		if w.OwnerID == ownerID {
			copy := *w
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *MockWithdrawalRepository) UpdateStatus(ctx context.Context, w *domain.WithdrawalRequest, from domain.WithdrawalStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.withdrawals[w.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != from {
		return repository.ErrVersionConflict
	}
	stored.Status = w.Status
	stored.FailureReason = w.FailureReason
	stored.UpdatedAt = w.UpdatedAt
	return nil
}

func (m *MockWithdrawalRepository) SumHeldByOwner(ctx context.Context, ownerID, currency string) (domain.Money, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := domain.ZeroMoney(currency)
	for _, w := range m.withdrawals {
		if w.OwnerID == ownerID && w.Status.HoldsFunds() && w.Amount.Currency == total.Currency {
			total.Amount += w.Amount.Amount
		}
	}
	return total, nil
}

func (m *MockWithdrawalRepository) ListStale(ctx context.Context, status domain.WithdrawalStatus, before time.Time) ([]*domain.WithdrawalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.WithdrawalRequest, 0)
	for _, w := range m.withdrawals {
		if w.Status == status && w.UpdatedAt.Before(before) {
			copy := *w
			result = append(result, &copy)
		}
	}
	return result, nil
}

// GetWithdrawal returns the stored withdrawal for test assertions.
func (m *MockWithdrawalRepository) GetWithdrawal(id string) *domain.WithdrawalRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.withdrawals[id]
	if !ok {
		return nil
	}
	copy := *w
	return &copy
}

// CountWithdrawals returns the number of stored withdrawals.
func (m *MockWithdrawalRepository) CountWithdrawals() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.withdrawals)
}

// ──────────────────────────────────────────────
// MOCK PARTY REPOSITORY
// ──────────────────────────────────────────────

// MockPartyRepository is a mock implementation of PartyRepository.
type MockPartyRepository struct {
	mu      sync.RWMutex
	parties map[string]*domain.Party

	// Error injection
	GetAllError error
}

// NewMockPartyRepository creates a new mock party repository.
func NewMockPartyRepository() *MockPartyRepository {
	return &MockPartyRepository{
		parties: make(map[string]*domain.Party),
	}
}

// AddParty adds a party to the mock repository.
func (m *MockPartyRepository) AddParty(p *domain.Party) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parties[p.ID] = p
}

func (m *MockPartyRepository) Create(ctx context.Context, p *domain.Party) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.parties {
		if existing.Phone == p.Phone {
			return repository.ErrDuplicate
		}
	}
	copy := *p
	m.parties[p.ID] = &copy
	return nil
}

func (m *MockPartyRepository) GetByID(ctx context.Context, id string) (*domain.Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.parties[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (m *MockPartyRepository) GetByPhone(ctx context.Context, phone string) (*domain.Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.parties {
		if p.Phone == phone {
			copy := *p
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockPartyRepository) GetAll(ctx context.Context) ([]*domain.Party, error) {
	if m.GetAllError != nil {
		return nil, m.GetAllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Party, 0, len(m.parties))
	for _, p := range m.parties {
		copy := *p
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStoreInterface.
type MockLockStore struct {
	mu     sync.Mutex
	locks  map[string]mockLock
	tokens int

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error
}

type mockLock struct {
	token  string
	expiry time.Time
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]mockLock),
	}
}

func (m *MockLockStore) AcquireBookingLock(ctx context.Context, bookingID string, ttl time.Duration) (string, bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return "", false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:booking:" + bookingID
	if held, exists := m.locks[key]; exists {
		if time.Now().Before(held.expiry) {
			return "", false, nil // Lock still held.
		}
	}

	m.tokens++
	token := fmt.Sprintf("token-%d", m.tokens)
	m.locks[key] = mockLock{token: token, expiry: time.Now().Add(ttl)}
	return token, true, nil
}

// ReleaseBookingLock deletes the lock only while token still owns it.
func (m *MockLockStore) ReleaseBookingLock(ctx context.Context, bookingID, token string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "lock:booking:" + bookingID
	if held, exists := m.locks[key]; !exists || held.token != token {
		return redis.ErrLockNotHeld
	}
	delete(m.locks, key)
	return nil
}

// Hold takes the lock as another instance would, replacing any current holder.
func (m *MockLockStore) Hold(bookingID string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks["lock:booking:"+bookingID] = mockLock{token: "other-instance", expiry: time.Now().Add(ttl)}
}

// IsLocked checks if a booking is locked (for test assertions).
func (m *MockLockStore) IsLocked(bookingID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	held, exists := m.locks["lock:booking:"+bookingID]
	return exists && time.Now().Before(held.expiry)
}

// ──────────────────────────────────────────────
// MOCK BOOKING CACHE
// ──────────────────────────────────────────────

// MockBookingCache is a mock implementation of BookingCacheInterface.
type MockBookingCache struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking

	InvalidateCallCount int32

	// Error injection
	SetError error
}

// NewMockBookingCache creates a new mock booking cache.
func NewMockBookingCache() *MockBookingCache {
	return &MockBookingCache{bookings: make(map[string]*domain.Booking)}
}

func (m *MockBookingCache) GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, nil
	}
	return copyBooking(b), nil
}

// SetBooking keeps the higher version, like the Redis store.
func (m *MockBookingCache) SetBooking(ctx context.Context, b *domain.Booking) error {
	if m.SetError != nil {
		return m.SetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.bookings[b.ID]; ok && cached.Version >= b.Version {
		return nil
	}
	m.bookings[b.ID] = copyBooking(b)
	return nil
}

func (m *MockBookingCache) InvalidateBooking(ctx context.Context, bookingID string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bookings, bookingID)
	return nil
}

// Cached returns the cached snapshot, or nil.
func (m *MockBookingCache) Cached(bookingID string) *domain.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil
	}
	return copyBooking(b)
}

// Has reports whether the booking is cached.
func (m *MockBookingCache) Has(bookingID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bookings[bookingID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK NOTIFIER
// ──────────────────────────────────────────────

// MockNotifier records settlement events.
type MockNotifier struct {
	mu          sync.Mutex
	bookings    []domain.BookingStatusChanged
	withdrawals []domain.WithdrawalStatusChanged

	// Error injection: every call fails with FailWith after recording.
	FailWith error
}

// NewMockNotifier creates a new mock notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) BookingStatusChanged(ctx context.Context, event domain.BookingStatusChanged) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings = append(m.bookings, event)
	return m.FailWith
}

func (m *MockNotifier) WithdrawalStatusChanged(ctx context.Context, event domain.WithdrawalStatusChanged) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.withdrawals = append(m.withdrawals, event)
	return m.FailWith
}

// BookingEvents returns the recorded booking events.
func (m *MockNotifier) BookingEvents() []domain.BookingStatusChanged {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.BookingStatusChanged(nil), m.bookings...)
}

// WithdrawalEvents returns the recorded withdrawal events.
func (m *MockNotifier) WithdrawalEvents() []domain.WithdrawalStatusChanged {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.WithdrawalStatusChanged(nil), m.withdrawals...)
}

// ──────────────────────────────────────────────
// MOCK PAYOUT PROCESSOR
// ──────────────────────────────────────────────

// MockPayouts records submissions without calling back.
type MockPayouts struct {
	mu        sync.Mutex
	submitted []string

	// Error injection
	SubmitError error
}

// NewMockPayouts creates a new mock payout processor.
func NewMockPayouts() *MockPayouts {
	return &MockPayouts{}
}

func (m *MockPayouts) Submit(ctx context.Context, w *domain.WithdrawalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, w.ID)
	return m.SubmitError
}

// Submitted returns the IDs of submitted withdrawals in order.
func (m *MockPayouts) Submitted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.submitted...)
}

// ──────────────────────────────────────────────
// MOCK NOTIFICATION CHANNELS
// ──────────────────────────────────────────────

// SentMessage is one message captured by a mock channel.
type SentMessage struct {
	To      string
	Subject string
	Body    string
	Data    map[string]string
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []string

	PublishError error
}

func (m *MockPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
	return m.PublishError
}

// Events returns the published event types.
func (m *MockPublisher) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

// MockEmailSender records sent emails.
type MockEmailSender struct {
	mu   sync.Mutex
	sent []SentMessage

	SendError error
}

func (m *MockEmailSender) SendEmail(ctx context.Context, toName, toAddress, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentMessage{To: toAddress, Subject: subject, Body: body})
	return m.SendError
}

// Sent returns the captured emails.
func (m *MockEmailSender) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.sent...)
}

// MockPushSender records sent pushes.
type MockPushSender struct {
	mu   sync.Mutex
	sent []SentMessage
}

func (m *MockPushSender) SendToParty(ctx context.Context, partyID, title, body string, data map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentMessage{To: partyID, Subject: title, Body: body, Data: data})
	return nil
}

// Sent returns the captured pushes.
func (m *MockPushSender) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.sent...)
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockTimeout      = errors.New("mock: operation timeout")
	ErrMockDelivery     = errors.New("mock: delivery failed")
)
