package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/peregrinelabs/warden/config"
	"github.com/peregrinelabs/warden/model"
	"github.com/peregrinelabs/warden/repository"
)

// ThrottleUsecase is the adaptive rate limiter over login attempts. The
// append-only attempt log is its only state; counting the log and the
// log itself can never drift apart.
type ThrottleUsecase interface {
	// Check reports whether an attempt may proceed. When any tier is
	// locked it returns a *ThrottledError naming the blocking tier and
	// the remaining delay; the caller must wait and resubmit.
	Check(ctx context.Context, userID, ip string) error

	// Log appends one entry per applicable tier for the current attempt:
	// global always, ip and user when known. Called for successes and
	// failures alike.
	Log(ctx context.Context, userID, ip string) error

	// Delay returns the remaining lockout of a single tier.
	Delay(ctx context.Context, tier model.ThrottleType, userID, ip string) (time.Duration, error)

	// PruneBefore removes entries older than the boundary. Operator
	// maintenance; evaluation never deletes.
	PruneBefore(ctx context.Context, createdBefore time.Time) (int64, error)
}

type throttleUsecase struct {
	entries repository.ThrottleRepository
	cfg     *config.Config
	clock   Clock
	logger  *zerolog.Logger
}

// NewThrottleUsecase creates the throttle guard. clock may be nil to
// use the system clock.
func NewThrottleUsecase(
	entries repository.ThrottleRepository,
	cfg *config.Config,
	clock Clock,
	logger *zerolog.Logger,
) ThrottleUsecase {
	return &throttleUsecase{
		entries: entries,
		cfg:     cfg,
		clock:   orSystemClock(clock),
		logger:  logger,
	}
}

func (u *throttleUsecase) Check(ctx context.Context, userID, ip string) error {
	for _, tier := range applicableTiers(userID, ip) {
		remaining, err := u.Delay(ctx, tier, userID, ip)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return &ThrottledError{Tier: tier, Delay: remaining}
		}
	}
	return nil
}

func (u *throttleUsecase) Log(ctx context.Context, userID, ip string) error {
	now := u.clock()
	for _, tier := range applicableTiers(userID, ip) {
		entry := &model.Throttle{Type: tier, CreatedAt: now}
		switch tier {
		case model.ThrottleIP:
			entry.IP = ip
		case model.ThrottleUser:
			entry.UserID = userID
		}
		if _, err := u.entries.CreateThrottle(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (u *throttleUsecase) Delay(
	ctx context.Context,
	tier model.ThrottleType,
	userID, ip string,
) (time.Duration, error) {
	interval, table := u.tierSettings(tier)
	now := u.clock()

	filter := repository.ThrottleFilter{Type: tier, Since: now.Add(-interval)}
	switch tier {
	case model.ThrottleIP:
		filter.IP = ip
	case model.ThrottleUser:
		filter.UserID = userID
	}

	count, err := u.entries.CountThrottle(ctx, filter)
	if err != nil {
		return 0, err
	}

	// Highest threshold met wins.
	var delay time.Duration
	for i := len(table) - 1; i >= 0; i-- {
		if count >= int64(table[i].Attempts) {
			delay = table[i].Delay
			break
		}
	}
	if delay == 0 {
		return 0, nil
	}

	last, err := u.entries.LastThrottle(ctx, filter)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	free := last.CreatedAt.Add(delay)
	if now.Before(free) {
		return free.Sub(now), nil
	}
	return 0, nil
}

func (u *throttleUsecase) PruneBefore(ctx context.Context, createdBefore time.Time) (int64, error) {
	return u.entries.DeleteThrottleBefore(ctx, createdBefore)
}

func (u *throttleUsecase) tierSettings(tier model.ThrottleType) (time.Duration, config.ThresholdTable) {
	switch tier {
	case model.ThrottleIP:
		return u.cfg.IPInterval, u.cfg.IPThresholds
	case model.ThrottleUser:
		return u.cfg.UserInterval, u.cfg.UserThresholds
	default:
		return u.cfg.GlobalInterval, u.cfg.GlobalThresholds
	}
}

func applicableTiers(userID, ip string) []model.ThrottleType {
	tiers := []model.ThrottleType{model.ThrottleGlobal}
	if ip != "" {
		tiers = append(tiers, model.ThrottleIP)
	}
	if userID != "" {
		tiers = append(tiers, model.ThrottleUser)
	}
	return tiers
}
