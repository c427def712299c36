// Package cards generates batches of hotspot access cards and converts them
// into device-ready user records.
package cards

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hotspotctl/internal/codec"
	"hotspotctl/internal/model"
)

// regenerationLimit bounds collision retries per card. With a 6-digit random
// suffix the space is 10^6, so hitting the bound means the prefix space is
// effectively exhausted for the requested batch size.
const regenerationLimit = 1000

// ValidationError reports caller-supplied batch parameters out of range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// BatchSpec describes one card batch to generate.
type BatchSpec struct {
	Count          int
	Prefix         string
	Profile        string
	DataQuotaMB    int
	TimeQuotaHours int
	ValidityDays   int
}

// Batch is an ordered sequence of generated cards.
type Batch struct {
	ID        string
	CreatedAt time.Time
	Cards     []model.AccessCard
}

// Summary is a short human-readable description for export artifacts.
func (b Batch) Summary() string {
	return fmt.Sprintf("%d cards generated at %s", len(b.Cards), b.CreatedAt.Format("2006-01-02 15:04"))
}

// Generator produces card batches under a configured ceiling.
type Generator struct {
	maxBatchSize int
}

// NewGenerator builds a generator; maxBatchSize <= 0 falls back to 100.
func NewGenerator(maxBatchSize int) *Generator {
	if maxBatchSize <= 0 {
		maxBatchSize = 100
	}
	return &Generator{maxBatchSize: maxBatchSize}
}

// Generate produces exactly spec.Count cards with pairwise-distinct
// usernames. Username collisions are detected against the emitted set and
// regenerated before a card enters the batch.
func (g *Generator) Generate(spec BatchSpec) (Batch, error) {
	if spec.Count < 1 || spec.Count > g.maxBatchSize {
		return Batch{}, &ValidationError{Field: "count", Reason: fmt.Sprintf("must be between 1 and %d", g.maxBatchSize)}
	}
	if spec.ValidityDays <= 0 {
		return Batch{}, &ValidationError{Field: "validity_days", Reason: "must be positive"}
	}
	if spec.DataQuotaMB < 0 {
		return Batch{}, &ValidationError{Field: "data_quota_mb", Reason: "must not be negative"}
	}
	if spec.TimeQuotaHours < 0 {
		return Batch{}, &ValidationError{Field: "time_quota_hours", Reason: "must not be negative"}
	}
	if spec.Prefix == "" {
		spec.Prefix = "user"
	}
	if spec.Profile == "" {
		spec.Profile = "default"
	}

	now := time.Now().UTC()
	dataLabel := codec.FormatDataQuota(spec.DataQuotaMB)
	timeLabel := codec.FormatTimeQuota(spec.TimeQuotaHours)

	seen := make(map[string]struct{}, spec.Count)
	out := make([]model.AccessCard, 0, spec.Count)
	for len(out) < spec.Count {
		username := ""
		for attempt := 0; ; attempt++ {
			if attempt >= regenerationLimit {
				return Batch{}, &ValidationError{Field: "prefix", Reason: "username space exhausted for requested count"}
			}
			username = codec.GenerateUsername(spec.Prefix, 0)
			if _, dup := seen[username]; !dup {
				break
			}
		}
		seen[username] = struct{}{}

		out = append(out, model.AccessCard{
			Username:     username,
			Password:     codec.GeneratePassword(0),
			Profile:      spec.Profile,
			DataQuota:    dataLabel,
			TimeQuota:    timeLabel,
			ValidityDays: spec.ValidityDays,
			CreatedAt:    now,
		})
	}

	batch := Batch{ID: uuid.NewString(), CreatedAt: now, Cards: out}
	log.Info().Str("batch_id", batch.ID).Int("count", len(out)).Msg("card batch generated")
	return batch, nil
}

// ToDeviceRecords reinterprets the cards' quota labels as device wire limits.
// A malformed label fails closed to the empty (unlimited) wire value so one
// bad card cannot block the whole batch.
func ToDeviceRecords(cards []model.AccessCard) []model.HotspotUser {
	out := make([]model.HotspotUser, 0, len(cards))
	for _, card := range cards {
		dataLimit, err := codec.DataQuotaToWire(card.DataQuota)
		if err != nil {
			log.Warn().Err(err).Str("username", card.Username).Msg("data quota label unreadable, treating as unlimited")
			dataLimit = ""
		}
		timeLimit, err := codec.TimeQuotaToWire(card.TimeQuota)
		if err != nil {
			log.Warn().Err(err).Str("username", card.Username).Msg("time quota label unreadable, treating as unlimited")
			timeLimit = ""
		}

		out = append(out, model.HotspotUser{
			Name:            card.Username,
			Password:        card.Password,
			Profile:         card.Profile,
			Server:          "all",
			LimitBytesTotal: dataLimit,
			LimitUptime:     timeLimit,
			Comment:         "Generated on " + card.CreatedAt.Format("2006-01-02"),
		})
	}
	return out
}
