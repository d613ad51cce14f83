package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriber_NormalizedOffset(t *testing.T) {
	tests := []struct {
		offset int
		want   int
	}{
		{offset: 5, want: 5},
		{offset: 10, want: 10},
		{offset: 15, want: 15},
		{offset: 30, want: 30},
		{offset: 0, want: DefaultReminderOffset},
		{offset: 20, want: DefaultReminderOffset},
		{offset: -5, want: DefaultReminderOffset},
	}

	for _, tt := range tests {
		s := &Subscriber{ReminderOffset: tt.offset}
		assert.Equal(t, tt.want, s.NormalizedOffset(), "offset %d", tt.offset)
	}
}

func TestSubscriber_Wants(t *testing.T) {
	s := &Subscriber{Preferences: Preferences{DailyPrayers: true, Hadith: true}}

	assert.True(t, s.Wants(CategoryPrayer))
	assert.True(t, s.Wants(CategoryHadith))
	assert.False(t, s.Wants(CategoryJumuah))
	assert.False(t, s.Wants(CategoryNafl))
	assert.False(t, s.Wants(Category("maintenance")))
}

func TestSubscriber_Eligible(t *testing.T) {
	s := &Subscriber{
		Channel:     ChannelWhatsApp,
		Phone:       "+27821234567",
		Status:      SubscriberActive,
		Preferences: Preferences{DailyPrayers: true},
	}
	assert.True(t, s.Eligible(CategoryPrayer))

	s.Status = SubscriberPaused
	assert.False(t, s.Eligible(CategoryPrayer))

	s.Status = SubscriberActive
	s.Phone = ""
	assert.False(t, s.Eligible(CategoryPrayer))
}

func TestSubscriber_Recipient(t *testing.T) {
	id := uuid.New()

	wa := (&Subscriber{ID: id, Channel: ChannelWhatsApp, Phone: "+27820000000"}).Recipient()
	assert.Equal(t, id, wa.SubscriberID)
	assert.Equal(t, "+27820000000", wa.Address)
	assert.Nil(t, wa.PushKeys)

	push := (&Subscriber{ID: id, Channel: ChannelPush, PushEndpoint: "https://push.example/abc", PushP256dh: "k", PushAuth: "a"}).Recipient()
	assert.Equal(t, "https://push.example/abc", push.Address)
	require.NotNil(t, push.PushKeys)
	assert.Equal(t, "k", push.PushKeys.P256dh)
}

func TestSubscriber_PauseExpired(t *testing.T) {
	now := time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, (&Subscriber{Status: SubscriberPaused, PausedUntil: &past}).PauseExpired(now))
	assert.True(t, (&Subscriber{Status: SubscriberPaused, PausedUntil: &now}).PauseExpired(now))
	assert.False(t, (&Subscriber{Status: SubscriberPaused, PausedUntil: &future}).PauseExpired(now))
	assert.False(t, (&Subscriber{Status: SubscriberPaused}).PauseExpired(now))
	assert.False(t, (&Subscriber{Status: SubscriberActive, PausedUntil: &past}).PauseExpired(now))
}
