package billing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/billing"
	"github.com/partnerbill/backend/internal/domain/shared"
)

// MockEventPublisher is an in-memory implementation of shared.EventPublisher
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{events: make([]shared.DomainEvent, 0)}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// MockNotifier captures outbound email requests
type MockNotifier struct {
	mu       sync.Mutex
	Requests []billing.EmailRequest
	Err      error
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{Requests: make([]billing.EmailRequest, 0)}
}

func (m *MockNotifier) Send(ctx context.Context, req billing.EmailRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Requests = append(m.Requests, req)
	return nil
}

func (m *MockNotifier) ByKind(kind billing.NotificationKind) []billing.EmailRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]billing.EmailRequest, 0)
	for _, r := range m.Requests {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// memChannelRepo is an in-memory billing.ChannelRepository
type memChannelRepo struct {
	mu       sync.Mutex
	channels map[uuid.UUID]*billing.Channel
}

func newMemChannelRepo() *memChannelRepo {
	return &memChannelRepo{channels: make(map[uuid.UUID]*billing.Channel)}
}

func (r *memChannelRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[id]
	if !ok || ch.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return ch, nil
}

func (r *memChannelRepo) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*billing.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.channels {
		if ch.TenantID == tenantID && ch.Code == code {
			return ch, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memChannelRepo) FindAll(ctx context.Context, tenantID uuid.UUID, filter billing.ChannelFilter) (*shared.Paginated[*billing.Channel], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*billing.Channel, 0)
	for _, ch := range r.channels {
		if ch.TenantID != tenantID {
			continue
		}
		if filter.Status != nil && ch.Status != *filter.Status {
			continue
		}
		if filter.Type != nil && ch.Type != *filter.Type {
			continue
		}
		items = append(items, ch)
	}
	sortChannels(items)
	return shared.NewPaginated(items, int64(len(items)), 1, 20), nil
}

func (r *memChannelRepo) FindActive(ctx context.Context, tenantID uuid.UUID) ([]*billing.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*billing.Channel, 0)
	for _, ch := range r.channels {
		if ch.TenantID == tenantID && ch.IsActive() {
			items = append(items, ch)
		}
	}
	sortChannels(items)
	return items, nil
}

func (r *memChannelRepo) Save(ctx context.Context, ch *billing.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.ID] = ch
	return nil
}

func (r *memChannelRepo) SaveWithLock(ctx context.Context, ch *billing.Channel) error {
	return r.Save(ctx, ch)
}

func (r *memChannelRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, id)
	return nil
}

func sortChannels(items []*billing.Channel) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

// memEntryRepo is an in-memory billing.LedgerEntryRepository
type memEntryRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*billing.LedgerEntry
}

func newMemEntryRepo() *memEntryRepo {
	return &memEntryRepo{entries: make(map[uuid.UUID]*billing.LedgerEntry)}
}

func (r *memEntryRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return e, nil
}

func (r *memEntryRepo) FindAll(ctx context.Context, tenantID uuid.UUID, filter billing.LedgerEntryFilter) (*shared.Paginated[*billing.LedgerEntry], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*billing.LedgerEntry, 0)
	for _, e := range r.entries {
		if e.TenantID != tenantID {
			continue
		}
		if filter.ChannelID != nil && e.ChannelID != *filter.ChannelID {
			continue
		}
		if filter.Type != nil && e.Type != *filter.Type {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		if filter.StatementID != nil && (e.StatementID == nil || *e.StatementID != *filter.StatementID) {
			continue
		}
		items = append(items, e)
	}
	sortEntries(items)
	return shared.NewPaginated(items, int64(len(items)), 1, 20), nil
}

func (r *memEntryRepo) FindByChannel(ctx context.Context, tenantID, channelID uuid.UUID) ([]*billing.LedgerEntry, error) {
	return r.collect(tenantID, channelID, func(e *billing.LedgerEntry) bool { return true })
}

func (r *memEntryRepo) FindUnbilledReceivables(ctx context.Context, tenantID, channelID uuid.UUID) ([]*billing.LedgerEntry, error) {
	return r.collect(tenantID, channelID, func(e *billing.LedgerEntry) bool {
		return e.Type == billing.EntryTypeReceivable && e.IsUnbilled()
	})
}

func (r *memEntryRepo) FindOutstandingReceivables(ctx context.Context, tenantID, channelID uuid.UUID) ([]*billing.LedgerEntry, error) {
	return r.collect(tenantID, channelID, func(e *billing.LedgerEntry) bool {
		return e.IsOutstanding()
	})
}

func (r *memEntryRepo) CountUnbilledReceivables(ctx context.Context, tenantID, channelID uuid.UUID) (int64, error) {
	entries, err := r.FindUnbilledReceivables(ctx, tenantID, channelID)
	if err != nil {
		return 0, err
	}
	return int64(len(entries)), nil
}

func (r *memEntryRepo) Save(ctx context.Context, entry *billing.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.ID] = entry
	return nil
}

func (r *memEntryRepo) SaveAll(ctx context.Context, entries []*billing.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return nil
}

func (r *memEntryRepo) collect(tenantID, channelID uuid.UUID, keep func(*billing.LedgerEntry) bool) ([]*billing.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*billing.LedgerEntry, 0)
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.ChannelID == channelID && keep(e) {
			items = append(items, e)
		}
	}
	sortEntries(items)
	return items, nil
}

func sortEntries(items []*billing.LedgerEntry) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

// memStatementRepo is an in-memory billing.StatementRepository
type memStatementRepo struct {
	mu         sync.Mutex
	statements map[uuid.UUID]*billing.Statement
	seq        int
}

func newMemStatementRepo() *memStatementRepo {
	return &memStatementRepo{statements: make(map[uuid.UUID]*billing.Statement)}
}

func (r *memStatementRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Statement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.statements[id]
	if !ok || s.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return s, nil
}

func (r *memStatementRepo) FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*billing.Statement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.statements {
		if s.TenantID == tenantID && s.StatementNumber == number {
			return s, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memStatementRepo) FindAll(ctx context.Context, tenantID uuid.UUID, filter billing.StatementFilter) (*shared.Paginated[*billing.Statement], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*billing.Statement, 0)
	for _, s := range r.statements {
		if s.TenantID != tenantID {
			continue
		}
		if filter.ChannelID != nil && s.ChannelID != *filter.ChannelID {
			continue
		}
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		items = append(items, s)
	}
	sortStatements(items)
	return shared.NewPaginated(items, int64(len(items)), 1, 20), nil
}

func (r *memStatementRepo) FindOpenByChannel(ctx context.Context, tenantID, channelID uuid.UUID) ([]*billing.Statement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*billing.Statement, 0)
	for _, s := range r.statements {
		if s.TenantID == tenantID && s.ChannelID == channelID && s.Status.IsOpen() {
			items = append(items, s)
		}
	}
	sortStatements(items)
	return items, nil
}

func (r *memStatementRepo) FindOpen(ctx context.Context, tenantID uuid.UUID) ([]*billing.Statement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*billing.Statement, 0)
	for _, s := range r.statements {
		if s.TenantID == tenantID && s.Status.IsOpen() {
			items = append(items, s)
		}
	}
	sortStatements(items)
	return items, nil
}

func (r *memStatementRepo) FindByChannel(ctx context.Context, tenantID, channelID uuid.UUID) ([]*billing.Statement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*billing.Statement, 0)
	for _, s := range r.statements {
		if s.TenantID == tenantID && s.ChannelID == channelID {
			items = append(items, s)
		}
	}
	sortStatements(items)
	return items, nil
}

func (r *memStatementRepo) NextStatementNumber(ctx context.Context, tenantID uuid.UUID, date time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return fmt.Sprintf("ST-%s-%05d", date.Format("20060102"), r.seq), nil
}

func (r *memStatementRepo) Save(ctx context.Context, s *billing.Statement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements[s.ID] = s
	return nil
}

func (r *memStatementRepo) SaveWithLock(ctx context.Context, s *billing.Statement) error {
	return r.Save(ctx, s)
}

func sortStatements(items []*billing.Statement) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

// memConfigRepo is an in-memory billing.StatementConfigRepository
type memConfigRepo struct {
	mu      sync.Mutex
	configs map[uuid.UUID]*billing.StatementConfig
}

func newMemConfigRepo() *memConfigRepo {
	return &memConfigRepo{configs: make(map[uuid.UUID]*billing.StatementConfig)}
}

func (r *memConfigRepo) FindByChannel(ctx context.Context, tenantID, channelID uuid.UUID) (*billing.StatementConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[channelID]
	if !ok || cfg.TenantID != tenantID {
		return nil, nil
	}
	return cfg, nil
}

func (r *memConfigRepo) Save(ctx context.Context, cfg *billing.StatementConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.ChannelID] = cfg
	return nil
}

func (r *memConfigRepo) Delete(ctx context.Context, tenantID, channelID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.configs, channelID)
	return nil
}

// billingFixture wires the in-memory repositories behind a no-op transaction
// scope for service tests
type billingFixture struct {
	channels   *memChannelRepo
	entries    *memEntryRepo
	statements *memStatementRepo
	configs    *memConfigRepo
	scope      *NoOpTransactionScope
	publisher  *MockEventPublisher
	notifier   *MockNotifier
}

func newBillingFixture() *billingFixture {
	f := &billingFixture{
		channels:   newMemChannelRepo(),
		entries:    newMemEntryRepo(),
		statements: newMemStatementRepo(),
		configs:    newMemConfigRepo(),
		publisher:  NewMockEventPublisher(),
		notifier:   NewMockNotifier(),
	}
	f.scope = NewNoOpTransactionScope(f.channels, f.entries, f.statements, f.configs)
	return f
}
