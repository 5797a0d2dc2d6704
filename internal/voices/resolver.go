package voices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrNoVoices is returned when the catalogue is empty.
	ErrNoVoices = errors.New("no voices available")
	// ErrUnknownVoice is returned when saving a voice outside the catalogue.
	ErrUnknownVoice = errors.New("unknown voice")
	// ErrInvalidRate is returned when saving a rate outside the accepted bounds.
	ErrInvalidRate = errors.New("playback rate out of range")
)

const resolveTimeout = 2 * time.Second

// Preferences is the key/value storage behind a Resolver.
type Preferences interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Defaults are the saved narration preferences after resolution.
type Defaults struct {
	Voice string  `json:"voice"`
	Rate  float64 `json:"rate"`
}

// Resolver combines the voice catalogue with the saved preferences. It
// implements narration.Settings.
type Resolver struct {
	prefs     Preferences
	available []Voice
	logger    *slog.Logger
}

// NewResolver creates a resolver over the given catalogue.
func NewResolver(prefs Preferences, available []Voice, logger *slog.Logger) *Resolver {
	return &Resolver{
		prefs:     prefs,
		available: append([]Voice(nil), available...),
		logger:    logger,
	}
}

// Voices returns the catalogue.
func (r *Resolver) Voices() []Voice {
	return append([]Voice(nil), r.available...)
}

// Resolve returns the voice and rate for the next utterance. Storage errors
// fall back to the built-in defaults.
func (r *Resolver) Resolve() (string, float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	d, err := r.Current(ctx)
	if err != nil {
		return "", 0, err
	}
	return d.Voice, d.Rate, nil
}

// Current resolves the saved preferences against the catalogue.
func (r *Resolver) Current(ctx context.Context) (Defaults, error) {
	if len(r.available) == 0 {
		return Defaults{}, ErrNoVoices
	}

	saved := r.lookup(ctx, KeyDefaultVoice)
	rate := DefaultRate
	if s := r.lookup(ctx, KeyPlaybackSpeed); s != "" {
		rate = ParseRate(s)
	}

	return Defaults{
		Voice: DefaultVoice(r.available, saved),
		Rate:  rate,
	}, nil
}

// SetDefaults saves the default voice and rate.
func (r *Resolver) SetDefaults(ctx context.Context, voice string, rate float64) error {
	known := false
	for _, v := range r.available {
		if v.ID == voice {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownVoice, voice)
	}
	if rate < MinRate || rate > MaxRate {
		return fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}

	if err := r.prefs.Set(ctx, KeyDefaultVoice, voice); err != nil {
		return err
	}
	if err := r.prefs.Set(ctx, KeyPlaybackSpeed, FormatRate(rate)); err != nil {
		return err
	}

	r.logger.Info("narration defaults saved", "voice", voice, "rate", rate)
	return nil
}

func (r *Resolver) lookup(ctx context.Context, key string) string {
	value, ok, err := r.prefs.Get(ctx, key)
	if err != nil {
		r.logger.Warn("failed to read preference", "key", key, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return value
}
