// Package events carries spool and session notifications between the
// tracker, the inventory and whoever is watching.
package events

import "time"

// Topics.
const (
	TopicSpoolSelected      = "spool.selected"
	TopicSpoolDeselected    = "spool.deselected"
	TopicSpoolAdded         = "spool.added"
	TopicSpoolDeleted       = "spool.deleted"
	TopicSpoolWeightUpdated = "spool.weight_updated"
	TopicSpoolLow           = "spool.low"
	TopicSpoolEmpty         = "spool.empty"
	TopicSessionReset       = "session.reset"
)

// AllTopics lists every topic in publication order of a typical session.
var AllTopics = []string{
	TopicSessionReset,
	TopicSpoolAdded,
	TopicSpoolSelected,
	TopicSpoolWeightUpdated,
	TopicSpoolLow,
	TopicSpoolEmpty,
	TopicSpoolDeselected,
	TopicSpoolDeleted,
}

// Event is the payload of every topic. Fields that do not apply to a topic
// are left zero.
type Event struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Time      time.Time `json:"time"`
	SessionID string    `json:"session_id,omitempty"`

	Tool        *int   `json:"tool,omitempty"`
	SpoolID     int64  `json:"spool_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`

	// Consumption applied by a weight update.
	ConsumedGrams    float64 `json:"consumed_grams,omitempty"`
	ConsumedLengthMM float64 `json:"consumed_length_mm,omitempty"`

	RemainingWeight *float64 `json:"remaining_weight,omitempty"`
	TotalWeight     *float64 `json:"total_weight,omitempty"`
}
