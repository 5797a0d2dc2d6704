// Package voices holds the voice catalogue, playback rate rules and the
// persisted narration preferences.
package voices

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// MinRate and MaxRate bound the accepted playback rate.
	MinRate = 0.1
	MaxRate = 10.0
	// DefaultRate is used whenever a rate is missing or out of bounds.
	DefaultRate = 1.0
)

// SpeedOptions are the playback speeds offered to users.
var SpeedOptions = []float64{0.5, 0.75, 1.0, 1.25, 1.5, 1.75, 2.0}

// ErrInvalidVoiceEntry is returned by ParseVoices for a malformed entry.
var ErrInvalidVoiceEntry = errors.New("invalid voice entry")

// Voice is a voice the speech engine can use.
type Voice struct {
	ID   string `json:"id" yaml:"id"`
	Lang string `json:"lang" yaml:"lang"`
	Name string `json:"name" yaml:"name"`
}

// ParseVoices parses a comma-separated list of "id:lang[:name]" entries.
func ParseVoices(list string) ([]Voice, error) {
	var out []Voice
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidVoiceEntry, entry)
		}
		v := Voice{
			ID:   strings.TrimSpace(parts[0]),
			Lang: strings.TrimSpace(parts[1]),
		}
		if len(parts) == 3 {
			v.Name = strings.TrimSpace(parts[2])
		}
		if v.Name == "" {
			v.Name = v.ID
		}
		out = append(out, v)
	}
	return out, nil
}

// DefaultVoice picks the voice to narrate with. A saved voice wins while it
// is still available; otherwise the first Hindi voice, then US English, then
// British English, then whatever comes first. It returns "" when nothing is
// available.
func DefaultVoice(available []Voice, saved string) string {
	if saved != "" {
		for _, v := range available {
			if v.ID == saved {
				return saved
			}
		}
	}
	for _, v := range available {
		if strings.HasPrefix(strings.ToLower(v.Lang), "hi") {
			return v.ID
		}
	}
	for _, lang := range []string{"en-US", "en-GB"} {
		for _, v := range available {
			if v.Lang == lang || strings.HasPrefix(v.Lang, lang+"-") {
				return v.ID
			}
		}
	}
	if len(available) > 0 {
		return available[0].ID
	}
	return ""
}

// ClampRate returns r when it is within [MinRate, MaxRate] and DefaultRate
// otherwise.
func ClampRate(r float64) float64 {
	if r >= MinRate && r <= MaxRate {
		return r
	}
	return DefaultRate
}

// ParseRate parses a stored rate and clamps it.
func ParseRate(s string) float64 {
	r, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return DefaultRate
	}
	return ClampRate(r)
}

// FormatRate renders a rate the way it is stored.
func FormatRate(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}
