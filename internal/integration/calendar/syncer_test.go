package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/config"
)

type fakeProvider struct {
	id      string
	err     error
	upserts []*string
	removed []string
}

func (f *fakeProvider) Upsert(ctx context.Context, event *models.CalendarEvent, externalID *string) (string, error) {
	f.upserts = append(f.upserts, externalID)
	if f.err != nil {
		return "", f.err
	}
	return f.id, nil
}

func (f *fakeProvider) Remove(ctx context.Context, externalID string) error {
	f.removed = append(f.removed, externalID)
	return f.err
}

func testEvent() *models.CalendarEvent {
	return &models.CalendarEvent{
		ID:        "e1",
		Title:     "Excursión",
		StartTime: time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 6, 15, 11, 0, 0, 0, time.UTC),
	}
}

func TestSyncerNilWhenUnconfigured(t *testing.T) {
	assert.Nil(t, NewSyncer(config.CalendarSyncConfig{}, nil))
}

func TestSyncEventBothProviders(t *testing.T) {
	google := &fakeProvider{id: "g1"}
	outlook := &fakeProvider{id: "o1"}
	s := &Syncer{google: google, outlook: outlook, timeout: time.Second}

	googleID, outlookID, err := s.SyncEvent(context.Background(), testEvent())
	require.NoError(t, err)
	require.NotNil(t, googleID)
	require.NotNil(t, outlookID)
	assert.Equal(t, "g1", *googleID)
	assert.Equal(t, "o1", *outlookID)
}

func TestSyncEventPartialFailureKeepsOtherID(t *testing.T) {
	google := &fakeProvider{err: errors.New("quota exceeded")}
	outlook := &fakeProvider{id: "o1"}
	s := &Syncer{google: google, outlook: outlook, timeout: time.Second}

	googleID, outlookID, err := s.SyncEvent(context.Background(), testEvent())
	require.Error(t, err)
	assert.Nil(t, googleID)
	require.NotNil(t, outlookID)
	assert.Equal(t, "o1", *outlookID)
}

func TestSyncEventUpdatesExisting(t *testing.T) {
	google := &fakeProvider{id: "g1"}
	s := &Syncer{google: google, timeout: time.Second}

	event := testEvent()
	existing := "g-old"
	event.GoogleEventID = &existing

	_, _, err := s.SyncEvent(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, google.upserts, 1)
	require.NotNil(t, google.upserts[0])
	assert.Equal(t, "g-old", *google.upserts[0])
}

func TestDeleteEventSkipsProvidersWithoutID(t *testing.T) {
	google := &fakeProvider{}
	outlook := &fakeProvider{}
	s := &Syncer{google: google, outlook: outlook, timeout: time.Second}

	event := testEvent()
	id := "g1"
	event.GoogleEventID = &id

	require.NoError(t, s.DeleteEvent(context.Background(), event))
	assert.Equal(t, []string{"g1"}, google.removed)
	assert.Empty(t, outlook.removed)
}
