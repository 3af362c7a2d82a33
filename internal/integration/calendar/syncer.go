package calendar

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/config"
)

// providerClient is the shape both provider clients share.
type providerClient interface {
	Upsert(ctx context.Context, event *models.CalendarEvent, externalID *string) (string, error)
	Remove(ctx context.Context, externalID string) error
}

// Syncer mirrors calendar events to every configured provider. A provider
// with empty credentials is skipped.
type Syncer struct {
	google  providerClient
	outlook providerClient
	timeout time.Duration
	logger  *zap.Logger
}

// NewSyncer builds a syncer from configuration. Returns nil when no provider
// is configured; callers treat a nil syncer as sync disabled.
func NewSyncer(cfg config.CalendarSyncConfig, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s := &Syncer{timeout: timeout, logger: logger}
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		s.google = NewGoogleClient(cfg.GoogleClientID, cfg.GoogleClientSecret, timeout)
	}
	if cfg.OutlookClientID != "" && cfg.OutlookClientSecret != "" {
		s.outlook = NewOutlookClient(cfg.OutlookClientID, cfg.OutlookClientSecret, timeout)
	}
	if s.google == nil && s.outlook == nil {
		return nil
	}
	return s
}

// SyncEvent pushes the event to every configured provider. A provider that
// already holds the event is updated in place. When one provider fails the
// other's id is still returned alongside the error.
func (s *Syncer) SyncEvent(ctx context.Context, event *models.CalendarEvent) (*string, *string, error) {
	var googleID, outlookID *string
	var errs []error

	if s.google != nil {
		id, err := s.google.Upsert(ctx, event, event.GoogleEventID)
		if err != nil {
			s.logger.Warn("google calendar sync failed", zap.String("event_id", event.ID), zap.Error(err))
			errs = append(errs, err)
		} else {
			googleID = &id
		}
	}
	if s.outlook != nil {
		id, err := s.outlook.Upsert(ctx, event, event.OutlookEventID)
		if err != nil {
			s.logger.Warn("outlook sync failed", zap.String("event_id", event.ID), zap.Error(err))
			errs = append(errs, err)
		} else {
			outlookID = &id
		}
	}
	return googleID, outlookID, errors.Join(errs...)
}

// DeleteEvent removes the event from every provider that holds it.
func (s *Syncer) DeleteEvent(ctx context.Context, event *models.CalendarEvent) error {
	var errs []error
	if s.google != nil && event.GoogleEventID != nil {
		if err := s.google.Remove(ctx, *event.GoogleEventID); err != nil {
			errs = append(errs, err)
		}
	}
	if s.outlook != nil && event.OutlookEventID != nil {
		if err := s.outlook.Remove(ctx, *event.OutlookEventID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
