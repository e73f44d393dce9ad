// Package registry is the single source of storage coordinates for trackable
// entry types. Push and pull never hardcode table names; adding a new record
// kind means adding one entry here plus its migration.
package registry

import (
	"fmt"
	"slices"

	"github.com/verdalabs/wellspring/internal/common"
)

// Config locates an entry type in storage: the backing table and the canonical
// event-time column used to order rows of that type.
type Config struct {
	Table      string
	EventField string
}

// order fixes the fan-out sequence for pull so responses are deterministic.
var order = []string{
	"health_metric",
	"sleep",
	"exercise",
	"diet",
	"substance",
	"mood",
	"negativity",
	"gratitude",
	"meditation",
}

var configs = map[string]Config{
	"health_metric": {Table: "health_metrics", EventField: "recorded_at"},
	"sleep":         {Table: "sleep_sessions", EventField: "start_time"},
	"exercise":      {Table: "exercise_sessions", EventField: "started_at"},
	"diet":          {Table: "diet_entries", EventField: "logged_at"},
	"substance":     {Table: "substance_entries", EventField: "logged_at"},
	"mood":          {Table: "mood_entries", EventField: "logged_at"},
	"negativity":    {Table: "negativity_entries", EventField: "logged_at"},
	"gratitude":     {Table: "gratitude_entries", EventField: "logged_at"},
	"meditation":    {Table: "meditation_sessions", EventField: "started_at"},
}

// Resolve maps an entry-type tag to its storage coordinates. Unknown tags
// yield an error matching common.ErrUnknownEntryType via errors.Is.
func Resolve(entryType string) (Config, error) {
	c, ok := configs[entryType]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", common.ErrUnknownEntryType, entryType)
	}
	return c, nil
}

// Types returns all registered entry-type tags in fan-out order.
func Types() []string {
	return slices.Clone(order)
}
