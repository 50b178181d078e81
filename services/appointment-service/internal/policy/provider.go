package policy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

// Provider supplies the cancellation policy and appointment settings in
// effect at the time of the call.
type Provider interface {
	CancellationPolicy(ctx context.Context) (model.CancellationPolicy, error)
	AppointmentSettings(ctx context.Context) (model.AppointmentSettings, error)
}

type staticProvider struct {
	policy   model.CancellationPolicy
	settings model.AppointmentSettings
}

func NewStaticProvider(p model.CancellationPolicy, s model.AppointmentSettings) Provider {
	return &staticProvider{policy: p, settings: s}
}

func (p *staticProvider) CancellationPolicy(context.Context) (model.CancellationPolicy, error) {
	return p.policy, nil
}

func (p *staticProvider) AppointmentSettings(context.Context) (model.AppointmentSettings, error) {
	return p.settings, nil
}

// SettingsStore reads persisted salon settings. It returns model.ErrNotFound
// when nothing has been saved yet.
type SettingsStore interface {
	LoadSettings(ctx context.Context) (model.CancellationPolicy, model.AppointmentSettings, error)
}

type storeProvider struct {
	store    SettingsStore
	fallback Provider
	logger   *slog.Logger
}

// NewStoreProvider reads settings from store on every call and falls back to
// fallback when the row is missing or the read fails.
func NewStoreProvider(store SettingsStore, fallback Provider, logger *slog.Logger) Provider {
	return &storeProvider{store: store, fallback: fallback, logger: logger}
}

func (p *storeProvider) CancellationPolicy(ctx context.Context) (model.CancellationPolicy, error) {
	cp, _, err := p.store.LoadSettings(ctx)
	if err != nil {
		p.warn(err)
		return p.fallback.CancellationPolicy(ctx)
	}
	return cp, nil
}

func (p *storeProvider) AppointmentSettings(ctx context.Context) (model.AppointmentSettings, error) {
	_, s, err := p.store.LoadSettings(ctx)
	if err != nil {
		p.warn(err)
		return p.fallback.AppointmentSettings(ctx)
	}
	return s, nil
}

func (p *storeProvider) warn(err error) {
	if errors.Is(err, model.ErrNotFound) || p.logger == nil {
		return
	}
	p.logger.Warn("salon settings unavailable, using defaults", "err", err)
}
