package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

// MockMosqueRepository is a mock implementation of domain.MosqueRepository
type MockMosqueRepository struct {
	mock.Mock
}

func (m *MockMosqueRepository) ListActive(ctx context.Context) ([]*domain.Mosque, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Mosque), args.Error(1)
}

func (m *MockMosqueRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Mosque, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Mosque), args.Error(1)
}

// MockSubscriberRepository is a mock implementation of domain.SubscriberRepository
type MockSubscriberRepository struct {
	mock.Mock
}

func (m *MockSubscriberRepository) ListEligible(ctx context.Context, mosqueID uuid.UUID, category domain.Category) ([]*domain.Subscriber, error) {
	args := m.Called(ctx, mosqueID, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Subscriber), args.Error(1)
}

func (m *MockSubscriberRepository) TouchLastMessage(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	args := m.Called(ctx, ids, at)
	return args.Error(0)
}

func (m *MockSubscriberRepository) Deactivate(ctx context.Context, ids []uuid.UUID) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *MockSubscriberRepository) ResumeExpiredPauses(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockReminderLockRepository is a mock implementation of domain.ReminderLockRepository
type MockReminderLockRepository struct {
	mock.Mock
}

func (m *MockReminderLockRepository) TryClaim(ctx context.Context, lock *domain.ReminderLock) (bool, error) {
	args := m.Called(ctx, lock)
	return args.Bool(0), args.Error(1)
}

func (m *MockReminderLockRepository) DeleteBefore(ctx context.Context, date string) (int64, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(int64), args.Error(1)
}

// MockMessageLogRepository is a mock implementation of domain.MessageLogRepository
type MockMessageLogRepository struct {
	mock.Mock
}

func (m *MockMessageLogRepository) Create(ctx context.Context, entry *domain.MessageLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockMessageLogRepository) CreateWithoutMetadata(ctx context.Context, entry *domain.MessageLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockMessageLogRepository) ExistsSince(ctx context.Context, mosqueID uuid.UUID, category domain.Category, subtype string, since time.Time) (bool, error) {
	args := m.Called(ctx, mosqueID, category, subtype, since)
	return args.Bool(0), args.Error(1)
}

// MockTemplateRepository is a mock implementation of domain.TemplateRepository
type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) GetByName(ctx context.Context, name string) (*domain.Template, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Template), args.Error(1)
}

// MockHadithRepository is a mock implementation of domain.HadithRepository
type MockHadithRepository struct {
	mock.Mock
}

func (m *MockHadithRepository) ForDay(ctx context.Context, dayOfYear int) (*domain.Hadith, error) {
	args := m.Called(ctx, dayOfYear)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Hadith), args.Error(1)
}

// MockScheduledMessageRepository is a mock implementation of domain.ScheduledMessageRepository
type MockScheduledMessageRepository struct {
	mock.Mock
}

func (m *MockScheduledMessageRepository) ClaimDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*domain.ScheduledMessage, error) {
	args := m.Called(ctx, now, staleBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ScheduledMessage), args.Error(1)
}

func (m *MockScheduledMessageRepository) Update(ctx context.Context, msg *domain.ScheduledMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockPrayerTimeCache is a mock implementation of domain.PrayerTimeCache
type MockPrayerTimeCache struct {
	mock.Mock
}

func (m *MockPrayerTimeCache) Get(ctx context.Context, mosqueID uuid.UUID, date string) (*domain.EventTimeSet, error) {
	args := m.Called(ctx, mosqueID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EventTimeSet), args.Error(1)
}

func (m *MockPrayerTimeCache) Set(ctx context.Context, set *domain.EventTimeSet) error {
	args := m.Called(ctx, set)
	return args.Error(0)
}

func (m *MockPrayerTimeCache) DeleteBefore(ctx context.Context, date string) (int64, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(int64), args.Error(1)
}

// MockTimetableProvider is a mock implementation of domain.TimetableProvider
type MockTimetableProvider struct {
	mock.Mock
}

func (m *MockTimetableProvider) Timings(ctx context.Context, req domain.TimetableRequest) (*domain.Timetable, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Timetable), args.Error(1)
}

func (m *MockTimetableProvider) HijriDate(ctx context.Context, date time.Time) (string, error) {
	args := m.Called(ctx, date)
	return args.String(0), args.Error(1)
}

// stubResolver resolves every mosque from a fixed map.
type stubResolver struct {
	sets map[uuid.UUID]*domain.EventTimeSet
	err  map[uuid.UUID]error
}

func (r *stubResolver) Resolve(ctx context.Context, mosque *domain.Mosque, now time.Time) (*domain.EventTimeSet, error) {
	if err, ok := r.err[mosque.ID]; ok {
		return nil, err
	}
	return r.sets[mosque.ID], nil
}

type dispatchCall struct {
	recipients []domain.Recipient
	msg        domain.Message
}

// recordingDispatcher succeeds for every recipient and remembers each batch.
type recordingDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
	fail  map[uuid.UUID]bool
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, recipients []domain.Recipient, msg domain.Message) *domain.DispatchResult {
	d.mu.Lock()
	d.calls = append(d.calls, dispatchCall{recipients: recipients, msg: msg})
	d.mu.Unlock()

	result := &domain.DispatchResult{Total: len(recipients)}
	for _, r := range recipients {
		if d.fail[r.SubscriberID] {
			result.Failed++
			result.Results = append(result.Results, domain.RecipientResult{SubscriberID: r.SubscriberID, Attempts: 1})
			continue
		}
		result.Successful++
		result.Succeeded = append(result.Succeeded, r.SubscriberID)
		result.Results = append(result.Results, domain.RecipientResult{SubscriberID: r.SubscriberID, Success: true, Attempts: 1})
	}
	return result
}

func (d *recordingDispatcher) Calls() []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatchCall(nil), d.calls...)
}
