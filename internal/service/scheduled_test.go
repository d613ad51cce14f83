package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

func TestScheduledMessageService_ProcessDue(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()
	now := time.Date(2024, 6, 14, 10, 0, 0, 0, time.UTC)

	setup := func() (*MockScheduledMessageRepository, *MockMosqueRepository, *MockSubscriberRepository, *MockMessageLogRepository, *recordingDispatcher, *ScheduledMessageService) {
		repo := new(MockScheduledMessageRepository)
		mosques := new(MockMosqueRepository)
		subscribers := new(MockSubscriberRepository)
		logs := new(MockMessageLogRepository)
		logs.On("Create", mock.Anything, mock.Anything).Return(nil)
		dispatcher := &recordingDispatcher{}
		svc := NewScheduledMessageService(repo, mosques, subscribers, NewTemplateService(nil, logger), dispatcher, NewMessageLogWriter(logs, logger), logger, 0)
		return repo, mosques, subscribers, logs, dispatcher, svc
	}

	t.Run("delivers and marks sent", func(t *testing.T) {
		repo, mosques, subscribers, _, dispatcher, svc := setup()
		mosque := testMosque()
		msg := domain.NewScheduledMessage(mosque.ID, "Eid salah at 07:30 in the main hall.", now.Add(-time.Minute))
		subs := []*domain.Subscriber{testSubscriber(mosque.ID, 15), testSubscriber(mosque.ID, 5)}

		repo.On("ClaimDue", ctx, now, now.Add(-scheduledLease), scheduledBatchSize).Return([]*domain.ScheduledMessage{msg}, nil).Once()
		repo.On("Update", ctx, msg).Return(nil).Once()
		mosques.On("GetByID", ctx, mosque.ID).Return(mosque, nil).Once()
		subscribers.On("ListEligible", ctx, mosque.ID, domain.CategoryAnnouncements).Return(subs, nil).Once()
		subscribers.On("TouchLastMessage", ctx, mock.Anything, now).Return(nil).Once()

		sent, err := svc.ProcessDue(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 2, sent)
		assert.Equal(t, domain.ScheduledSent, msg.Status)
		require.NotNil(t, msg.SentAt)

		calls := dispatcher.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, "Masjid Al-Noor", calls[0].msg.Title)
		assert.Equal(t, "Eid salah at 07:30 in the main hall.", calls[0].msg.Body)
		repo.AssertExpectations(t)
	})

	t.Run("failure goes back to pending", func(t *testing.T) {
		repo, mosques, _, _, _, svc := setup()
		msg := domain.NewScheduledMessage(uuid.New(), "Jumu'ah moved to 13:30.", now.Add(-time.Minute))

		repo.On("ClaimDue", ctx, now, now.Add(-scheduledLease), scheduledBatchSize).Return([]*domain.ScheduledMessage{msg}, nil).Once()
		repo.On("Update", ctx, msg).Return(nil).Once()
		mosques.On("GetByID", ctx, msg.MosqueID).Return(nil, errors.New("connection refused")).Once()

		sent, err := svc.ProcessDue(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 0, sent)
		assert.Equal(t, domain.ScheduledPending, msg.Status)
		assert.Equal(t, 1, msg.RetryCount)
		assert.Contains(t, msg.LastError, "connection refused")
	})

	t.Run("fifth failure is permanent", func(t *testing.T) {
		repo, mosques, subscribers, _, dispatcher, svc := setup()
		mosque := testMosque()
		sub := testSubscriber(mosque.ID, 15)
		dispatcher.fail = map[uuid.UUID]bool{sub.ID: true}

		msg := domain.NewScheduledMessage(mosque.ID, "Fundraiser tonight.", now.Add(-time.Hour))
		msg.RetryCount = domain.DefaultMaxScheduledRetries - 1

		repo.On("ClaimDue", ctx, now, now.Add(-scheduledLease), scheduledBatchSize).Return([]*domain.ScheduledMessage{msg}, nil).Once()
		repo.On("Update", ctx, msg).Return(nil).Once()
		mosques.On("GetByID", ctx, mosque.ID).Return(mosque, nil).Once()
		subscribers.On("ListEligible", ctx, mosque.ID, domain.CategoryAnnouncements).Return([]*domain.Subscriber{sub}, nil).Once()

		_, err := svc.ProcessDue(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, domain.ScheduledFailed, msg.Status)
		assert.Equal(t, domain.DefaultMaxScheduledRetries, msg.RetryCount)
	})

	t.Run("no recipients still completes", func(t *testing.T) {
		repo, mosques, subscribers, _, dispatcher, svc := setup()
		mosque := testMosque()
		msg := domain.NewScheduledMessage(mosque.ID, "Quiet reminder.", now)

		repo.On("ClaimDue", ctx, now, now.Add(-scheduledLease), scheduledBatchSize).Return([]*domain.ScheduledMessage{msg}, nil).Once()
		repo.On("Update", ctx, msg).Return(nil).Once()
		mosques.On("GetByID", ctx, mosque.ID).Return(mosque, nil).Once()
		subscribers.On("ListEligible", ctx, mosque.ID, domain.CategoryAnnouncements).Return([]*domain.Subscriber{}, nil).Once()

		_, err := svc.ProcessDue(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, domain.ScheduledSent, msg.Status)
		assert.Empty(t, dispatcher.Calls())
	})

	t.Run("reclaimed message is delivered again", func(t *testing.T) {
		repo, mosques, subscribers, _, dispatcher, svc := setup()
		mosque := testMosque()
		msg := domain.NewScheduledMessage(mosque.ID, "Taraweeh starts at 20:00.", now.Add(-time.Hour))
		msg.Status = domain.ScheduledProcessing
		msg.RetryCount = 2
		msg.LastError = "processing lease expired"

		repo.On("ClaimDue", ctx, now, now.Add(-scheduledLease), scheduledBatchSize).Return([]*domain.ScheduledMessage{msg}, nil).Once()
		repo.On("Update", ctx, msg).Return(nil).Once()
		mosques.On("GetByID", ctx, mosque.ID).Return(mosque, nil).Once()
		subscribers.On("ListEligible", ctx, mosque.ID, domain.CategoryAnnouncements).
			Return([]*domain.Subscriber{testSubscriber(mosque.ID, 15)}, nil).Once()
		subscribers.On("TouchLastMessage", ctx, mock.Anything, now).Return(nil).Once()

		sent, err := svc.ProcessDue(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 1, sent)
		assert.Equal(t, domain.ScheduledSent, msg.Status)
		assert.Len(t, dispatcher.Calls(), 1)
	})

	t.Run("reclaimed message out of retries is failed", func(t *testing.T) {
		repo, mosques, _, _, dispatcher, svc := setup()
		msg := domain.NewScheduledMessage(uuid.New(), "Janazah after Dhuhr.", now.Add(-time.Hour))
		msg.Status = domain.ScheduledProcessing
		msg.RetryCount = domain.DefaultMaxScheduledRetries
		msg.LastError = "processing lease expired"

		repo.On("ClaimDue", ctx, now, now.Add(-scheduledLease), scheduledBatchSize).Return([]*domain.ScheduledMessage{msg}, nil).Once()
		repo.On("Update", ctx, msg).Return(nil).Once()

		sent, err := svc.ProcessDue(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 0, sent)
		assert.Equal(t, domain.ScheduledFailed, msg.Status)
		assert.Equal(t, domain.DefaultMaxScheduledRetries, msg.RetryCount)
		assert.Empty(t, dispatcher.Calls())
		mosques.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
	})

	t.Run("claim failure is returned", func(t *testing.T) {
		repo, _, _, _, _, svc := setup()
		repo.On("ClaimDue", ctx, now, now.Add(-scheduledLease), scheduledBatchSize).Return(nil, errors.New(`relation "scheduled_messages" does not exist`)).Once()

		_, err := svc.ProcessDue(ctx, now)
		assert.Error(t, err)
	})
}

func TestSubscriberService_AutoResume(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 14, 10, 0, 0, 0, time.UTC)

	repo := new(MockSubscriberRepository)
	repo.On("ResumeExpiredPauses", ctx, now).Return(int64(3), nil).Once()
	n, err := NewSubscriberService(repo, testLogger()).AutoResume(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	repo.On("ResumeExpiredPauses", ctx, now).Return(int64(0), errors.New("timeout")).Once()
	_, err = NewSubscriberService(repo, testLogger()).AutoResume(ctx, now)
	assert.Error(t, err)
}

func TestMaintenanceService_Purge(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 14, 1, 0, 0, 0, time.UTC)

	t.Run("deletes before the retention cutoffs", func(t *testing.T) {
		locks := new(MockReminderLockRepository)
		cache := new(MockPrayerTimeCache)
		locks.On("DeleteBefore", ctx, "2024-06-07").Return(int64(42), nil).Once()
		cache.On("DeleteBefore", ctx, "2024-06-11").Return(int64(9), nil).Once()

		result, err := NewMaintenanceService(locks, cache, testLogger(), 7, 3).Purge(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(42), result.Locks)
		assert.Equal(t, int64(9), result.Cache)
	})

	t.Run("cache purge runs after a lock purge failure", func(t *testing.T) {
		locks := new(MockReminderLockRepository)
		cache := new(MockPrayerTimeCache)
		locks.On("DeleteBefore", ctx, mock.Anything).Return(int64(0), errors.New("timeout")).Once()
		cache.On("DeleteBefore", ctx, mock.Anything).Return(int64(5), nil).Once()

		result, err := NewMaintenanceService(locks, cache, testLogger(), 7, 3).Purge(ctx, now)
		assert.Error(t, err)
		assert.Equal(t, int64(5), result.Cache)
		cache.AssertExpectations(t)
	})
}
