// Package models holds the server-side data structures: wire shapes for the
// sync protocol plus persisted account and feed records.
package models

import "time"

// Sync entry actions accepted from clients.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"

	// ActionUpsert and ActionTombstone tag server→client pull entries.
	ActionUpsert    = "upsert"
	ActionTombstone = "delete"
)

// Conflict resolutions accepted on /sync/resolve.
const (
	ResolutionKeepLocal  = "keep_local"
	ResolutionKeepServer = "keep_server"
	ResolutionMerge      = "merge"
)

// SyncEntry is one client-side change. LocalID is a client-generated
// identifier with no server meaning until reconciled; Data is the opaque
// field map written to the entry type's backing table.
type SyncEntry struct {
	EntryType  string         `json:"entry_type"`
	LocalID    string         `json:"local_id"`
	Data       map[string]any `json:"data"`
	Action     string         `json:"action"`
	CreatedAt  time.Time      `json:"created_at"`
	ModifiedAt time.Time      `json:"modified_at"`
}

// FailedEntry reports one entry that could not be applied. The batch itself
// still succeeds; clients re-queue these for a later push.
type FailedEntry struct {
	LocalID   string `json:"local_id"`
	EntryType string `json:"entry_type"`
	Error     string `json:"error"`
}

// SyncPushRequest is the body of POST /sync/push.
type SyncPushRequest struct {
	DeviceID   string      `json:"device_id"`
	Entries    []SyncEntry `json:"entries"`
	LastSyncAt *time.Time  `json:"last_sync_at,omitempty"`
}

// SyncPushResponse acknowledges a push batch. ServerTimestamp is the
// authoritative checkpoint the client stores for its next pull.
type SyncPushResponse struct {
	SyncedCount     int           `json:"synced_count"`
	FailedEntries   []FailedEntry `json:"failed_entries"`
	ServerTimestamp time.Time     `json:"server_timestamp"`
}

// SyncPullEntry is a server-side record visible as of the pull boundary.
// Action is "upsert" for live rows and "delete" for tombstones.
type SyncPullEntry struct {
	EntryType  string         `json:"entry_type"`
	ServerID   string         `json:"server_id"`
	Data       map[string]any `json:"data"`
	Action     string         `json:"action"`
	ModifiedAt time.Time      `json:"modified_at"`
}

// SyncPullResponse carries everything that changed since the checkpoint plus
// the always-refreshed analysis and podcast feeds.
type SyncPullResponse struct {
	Entries         []SyncPullEntry `json:"entries"`
	Analyses        []DailyAnalysis `json:"analyses"`
	Podcasts        []Podcast       `json:"podcasts"`
	ServerTimestamp time.Time       `json:"server_timestamp"`
	HasMore         bool            `json:"has_more"`
}

// SyncStatus is the persisted per-(user, device) checkpoint.
type SyncStatus struct {
	DeviceID       string        `json:"device_id"`
	LastSyncAt     *time.Time    `json:"last_sync_at"`
	PendingChanges int           `json:"pending_changes"`
	SyncErrors     []FailedEntry `json:"sync_errors"`
	IsSyncing      bool          `json:"is_syncing"`
}

// SyncConflict records two divergent versions of the same logical record.
// It is queryable state, not an ephemeral push error, and survives until
// explicitly resolved.
type SyncConflict struct {
	ID               string         `json:"id"`
	EntryType        string         `json:"entry_type"`
	LocalID          string         `json:"local_id"`
	ServerID         string         `json:"server_id"`
	LocalData        map[string]any `json:"local_data"`
	ServerData       map[string]any `json:"server_data"`
	LocalModifiedAt  time.Time      `json:"local_modified_at"`
	ServerModifiedAt time.Time      `json:"server_modified_at"`

	UserID   string `json:"-"`
	DeviceID string `json:"-"`
}

// SyncConflictResolution is the body of POST /sync/resolve.
type SyncConflictResolution struct {
	ConflictID string         `json:"conflict_id"`
	Resolution string         `json:"resolution"`
	MergedData map[string]any `json:"merged_data,omitempty"`
}

// Tombstone marks a server-side delete so other devices can observe it.
type Tombstone struct {
	UserID    string
	EntryType string
	ServerID  string
	DeletedAt time.Time
}
