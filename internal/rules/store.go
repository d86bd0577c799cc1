// Package rules is the single source of truth for tunable policy values.
// Engines never embed policy constants; every threshold, multiplier and
// behavior is resolved through a Snapshot.
package rules

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"parking-service/internal/repository"
)

// Defaults mirrors every policy-sensitive key consumed anywhere in the
// service. A key missing from the database resolves here, so a lookup can
// never come back empty-handed.
var Defaults = map[string]interface{}{
	"access.max_stay_hours":           24,
	"access.subscriber_grace_minutes": 60,
	"access.low_confidence_threshold": 0.70,
	"access.blacklist_auto_alert":     true,
	"access.visitor_auto_session":     true,
	"access.unknown_plate_behavior":   "allow",
	"billing.night.start":             "22:00",
	"billing.night.end":               "06:00",
	"alerts.overstay_hours":           24,
	"alerts.duplicate_window_minutes": 2,
}

type Store struct {
	repo *repository.RuleRepository
}

func NewStore(repo *repository.RuleRepository) *Store {
	return &Store{repo: repo}
}

// Snapshot loads all stored rules into an immutable view. One snapshot is
// taken per decision transaction so a concurrent rule write cannot change
// policy mid-computation.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	stored, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	values := make(map[string]interface{}, len(stored))
	for _, rule := range stored {
		var v interface{}
		if err := json.Unmarshal(rule.Value, &v); err != nil {
			// A malformed stored value behaves like an absent key.
			continue
		}
		values[rule.Key] = v
	}
	return &Snapshot{values: values}, nil
}

// Set records a history entry and commits the new value atomically.
func (s *Store) Set(ctx context.Context, key string, value interface{}, author string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode rule value: %w", err)
	}
	return s.repo.Set(ctx, key, datatypes.JSON(raw), author)
}

func (s *Store) History(ctx context.Context, key string) ([]repository.RuleHistory, error) {
	return s.repo.HistoryForKey(ctx, key)
}

func (s *Store) List(ctx context.Context) ([]repository.Rule, error) {
	return s.repo.FindAll(ctx)
}

// Snapshot is a frozen view of the rule table. Lookups resolve in priority
// order: stored value, built-in default, caller fallback. They never fail.
type Snapshot struct {
	values map[string]interface{}
}

// NewSnapshot builds a snapshot from already-decoded values; used by tests
// and by callers that need a fixed policy view without a database.
func NewSnapshot(values map[string]interface{}) *Snapshot {
	if values == nil {
		values = map[string]interface{}{}
	}
	return &Snapshot{values: values}
}

func (s *Snapshot) Get(key string, fallback interface{}) interface{} {
	if v, ok := s.values[key]; ok {
		return v
	}
	if v, ok := Defaults[key]; ok {
		return v
	}
	return fallback
}

// GetString falls through to the default chain on shape mismatch, not just
// on absence; a mistyped stored value must not break a decision.
func (s *Snapshot) GetString(key, fallback string) string {
	if v, ok := s.values[key]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	if v, ok := Defaults[key]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return fallback
}

func (s *Snapshot) GetFloat(key string, fallback float64) float64 {
	if v, ok := s.values[key]; ok {
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	if v, ok := Defaults[key]; ok {
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return fallback
}

func (s *Snapshot) GetInt(key string, fallback int) int {
	return int(s.GetFloat(key, float64(fallback)))
}

func (s *Snapshot) GetBool(key string, fallback bool) bool {
	if v, ok := s.values[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	if v, ok := Defaults[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return fallback
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
