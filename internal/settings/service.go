// Package settings serves the store-wide tax rate, currency and delivery options.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/logger"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/fjod/go_cart/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrInvalidSettings = errors.New("invalid settings")

type Service struct {
	repo     repository.SettingsRepository
	defaults domain.Settings
	ttl      time.Duration
	log      *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	current  *domain.Settings
	loadedAt time.Time

	group singleflight.Group
}

func NewService(repo repository.SettingsRepository, defaults domain.Settings, ttl time.Duration, log *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		defaults: defaults,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
	}
}

// Defaults builds the seed document from configured values and the stock delivery options.
func Defaults(taxRate, currency string) (domain.Settings, error) {
	rate, err := decimal.NewFromString(taxRate)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("parse tax rate %q: %w", taxRate, err)
	}
	return domain.Settings{
		TaxRate:       rate,
		Currency:      currency,
		DeliveryDates: domain.DefaultDeliveryDates(),
	}, nil
}

// Get returns the cached settings, reloading them once the TTL has passed.
func (s *Service) Get(ctx context.Context) (domain.Settings, error) {
	s.mu.RLock()
	cur, loadedAt := s.current, s.loadedAt
	s.mu.RUnlock()

	if cur != nil && s.now().Sub(loadedAt) < s.ttl {
		return cloneSettings(*cur), nil
	}

	v, err, _ := s.group.Do("settings", func() (any, error) {
		return s.load(ctx)
	})
	if err != nil {
		if cur != nil {
			// stale copy while the store is unavailable
			logger.Warn(ctx, s.log, "settings reload failed, serving cached copy", zap.Error(err))
			return cloneSettings(*cur), nil
		}
		return domain.Settings{}, err
	}
	return cloneSettings(*v.(*domain.Settings)), nil
}

// Refresh drops the cached copy and loads the stored document.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	_, err, _ := s.group.Do("settings", func() (any, error) {
		return s.load(ctx)
	})
	return err
}

// Update validates and stores new settings, then replaces the cached copy.
func (s *Service) Update(ctx context.Context, next domain.Settings) (domain.Settings, error) {
	if err := Validate(next); err != nil {
		return domain.Settings{}, err
	}
	if err := s.repo.SaveSettings(ctx, &next); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	s.store(&next)
	logger.Info(ctx, s.log, "settings updated",
		zap.String("tax_rate", next.TaxRate.String()),
		zap.Int("delivery_options", len(next.DeliveryDates)))
	return cloneSettings(next), nil
}

// Calculator returns a pricing calculator for the current settings.
func (s *Service) Calculator(ctx context.Context) (*pricing.Calculator, error) {
	cur, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return pricing.FromSettings(cur), nil
}

func (s *Service) load(ctx context.Context) (*domain.Settings, error) {
	loaded, err := s.repo.GetSettings(ctx)
	if errors.Is(err, repository.ErrSettingsNotFound) {
		seed := cloneSettings(s.defaults)
		if err := s.repo.SaveSettings(ctx, &seed); err != nil {
			return nil, fmt.Errorf("seed settings: %w", err)
		}
		logger.Info(ctx, s.log, "seeded default settings")
		loaded = &seed
	} else if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	s.store(loaded)
	return loaded, nil
}

func (s *Service) store(v *domain.Settings) {
	c := cloneSettings(*v)
	s.mu.Lock()
	s.current = &c
	s.loadedAt = s.now()
	s.mu.Unlock()
}

// Validate checks the invariants the calculator relies on.
func Validate(v domain.Settings) error {
	if v.TaxRate.IsNegative() || v.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: tax rate must be between 0 and 1", ErrInvalidSettings)
	}
	if len(v.DeliveryDates) == 0 {
		return fmt.Errorf("%w: at least one delivery option is required", ErrInvalidSettings)
	}
	seen := make(map[string]bool, len(v.DeliveryDates))
	for _, o := range v.DeliveryDates {
		switch {
		case o.Name == "":
			return fmt.Errorf("%w: delivery option name is required", ErrInvalidSettings)
		case seen[o.Name]:
			return fmt.Errorf("%w: duplicate delivery option %q", ErrInvalidSettings, o.Name)
		case o.DaysToDeliver < 0:
			return fmt.Errorf("%w: %q has negative days", ErrInvalidSettings, o.Name)
		case o.ShippingPrice.IsNegative(), o.FreeShippingMinPrice.IsNegative():
			return fmt.Errorf("%w: %q has a negative price", ErrInvalidSettings, o.Name)
		}
		seen[o.Name] = true
	}
	return nil
}

func cloneSettings(v domain.Settings) domain.Settings {
	v.DeliveryDates = append([]domain.DeliveryOption(nil), v.DeliveryDates...)
	return v
}
