// Package services contains server-side business logic. This file implements
// SyncService, the heart of the offline-first protocol: push batches, pull
// fan-out, per-device status, and conflict resolution.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/verdalabs/wellspring/internal/common"
	"github.com/verdalabs/wellspring/internal/logging"
	sc "github.com/verdalabs/wellspring/internal/server/config"
	"github.com/verdalabs/wellspring/internal/server/models"
	"github.com/verdalabs/wellspring/internal/server/registry"
	"github.com/verdalabs/wellspring/internal/server/repositories/repomanager"
)

// FeedProvider supplies the derived-content feeds a pull response embeds.
type FeedProvider interface {
	RecentAnalyses(ctx context.Context, userID string) ([]models.DailyAnalysis, error)
	RecentPodcasts(ctx context.Context, userID string) ([]models.Podcast, error)
}

// SyncService applies client change batches and serves incremental pulls.
// Pushes from the same (user, device) are serialized by a keyed mutex so a
// retried batch can never interleave with the original.
type SyncService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	feeds       FeedProvider
	log         logging.Logger
	pageSize    int

	// now is a seam for tests; production uses time.Now.
	now func() time.Time

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	active map[string]bool
}

// NewSyncService constructs a SyncService using repositories and server config.
func NewSyncService(db *sql.DB, m repomanager.RepositoryManager, feeds FeedProvider, log logging.Logger, cfg *sc.Config) *SyncService {
	return &SyncService{
		db:          db,
		repomanager: m,
		feeds:       feeds,
		log:         log,
		pageSize:    cfg.PullPageSize,
		now:         time.Now,
		locks:       make(map[string]*sync.Mutex),
		active:      make(map[string]bool),
	}
}

func deviceKey(userID, deviceID string) string {
	return userID + "|" + deviceID
}

// lockDevice serializes pushes per (user, device) and marks the device as
// syncing for the duration. The returned func releases both.
func (s *SyncService) lockDevice(userID, deviceID string) func() {
	key := deviceKey(userID, deviceID)

	s.mu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.mu.Unlock()

	m.Lock()

	s.mu.Lock()
	s.active[key] = true
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.active, key)
		s.mu.Unlock()
		m.Unlock()
	}
}

func (s *SyncService) isSyncing(userID, deviceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[deviceKey(userID, deviceID)]
}

// Push applies a batch of client changes. Each entry succeeds or fails on its
// own; a bad entry never poisons the batch. The checkpoint row is upserted
// whether or not every entry applied, and the returned server timestamp is
// the authoritative value the client stores for its next pull.
func (s *SyncService) Push(ctx context.Context, userID string, req *models.SyncPushRequest) (*models.SyncPushResponse, error) {
	unlock := s.lockDevice(userID, req.DeviceID)
	defer unlock()

	now := s.now().UTC()

	synced := 0
	failed := []models.FailedEntry{}
	for _, entry := range req.Entries {
		if err := s.applyEntry(ctx, userID, req, entry, now); err != nil {
			s.log.Warn(ctx, "entry failed", "entry_type", entry.EntryType, "local_id", entry.LocalID, "error", err.Error())
			failed = append(failed, models.FailedEntry{
				LocalID:   entry.LocalID,
				EntryType: entry.EntryType,
				Error:     err.Error(),
			})
			continue
		}
		synced++
	}

	statusRepo := s.repomanager.SyncStatus(s.db)
	if err := statusRepo.Upsert(ctx, userID, req.DeviceID, now, len(failed), failed); err != nil {
		return nil, fmt.Errorf("error saving sync status: %w", err)
	}

	s.log.Info(ctx, "push complete", "device_id", req.DeviceID, "synced", synced, "failed", len(failed))

	return &models.SyncPushResponse{
		SyncedCount:     synced,
		FailedEntries:   failed,
		ServerTimestamp: now,
	}, nil
}

// applyEntry routes one change to its backing table. All storage coordinates
// come from the registry; unknown types fail here before any write.
func (s *SyncService) applyEntry(ctx context.Context, userID string, req *models.SyncPushRequest, entry models.SyncEntry, now time.Time) error {
	cfg, err := registry.Resolve(entry.EntryType)
	if err != nil {
		return err
	}

	recs := s.repomanager.Records(s.db)

	switch entry.Action {
	case models.ActionCreate:
		row := maps.Clone(entry.Data)
		if row == nil {
			row = map[string]any{}
		}
		// The server owns ids; a client-sent one is dropped. client_ref makes
		// a retried create update the existing row instead of duplicating it.
		delete(row, "id")
		row["user_id"] = userID
		row["client_ref"] = req.DeviceID + ":" + entry.LocalID
		_, err := recs.Upsert(ctx, cfg.Table, row)
		return err

	case models.ActionUpdate:
		id, ok := stringField(entry.Data, "id")
		if !ok {
			return common.ErrMissingServerID
		}
		current, err := recs.GetByID(ctx, cfg.Table, id, userID)
		if err != nil {
			return err
		}
		if req.LastSyncAt != nil {
			if serverModified, ok := timeField(current, "updated_at"); ok && serverModified.After(*req.LastSyncAt) {
				return s.recordConflict(ctx, userID, req.DeviceID, entry, id, current, serverModified)
			}
		}
		row := maps.Clone(entry.Data)
		delete(row, "id")
		return recs.Update(ctx, cfg.Table, id, userID, row)

	case models.ActionDelete:
		id, ok := stringField(entry.Data, "id")
		if !ok {
			return common.ErrMissingServerID
		}
		if err := recs.Delete(ctx, cfg.Table, id, userID); err != nil {
			return err
		}
		tombs := s.repomanager.Tombstones(s.db)
		return tombs.Record(ctx, userID, entry.EntryType, id, now)

	default:
		return fmt.Errorf("unsupported action %q", entry.Action)
	}
}

// recordConflict persists both versions and reports the entry as failed with
// ErrSyncConflict. The server row stays untouched until the client resolves.
func (s *SyncService) recordConflict(ctx context.Context, userID, deviceID string, entry models.SyncEntry, serverID string, serverData map[string]any, serverModified time.Time) error {
	conflictRepo := s.repomanager.Conflicts(s.db)
	_, err := conflictRepo.Create(ctx, &models.SyncConflict{
		EntryType:        entry.EntryType,
		LocalID:          entry.LocalID,
		ServerID:         serverID,
		LocalData:        entry.Data,
		ServerData:       serverData,
		LocalModifiedAt:  entry.ModifiedAt,
		ServerModifiedAt: serverModified,
		UserID:           userID,
		DeviceID:         deviceID,
	})
	if err != nil {
		return fmt.Errorf("error recording conflict: %w", err)
	}
	return common.ErrSyncConflict
}

// Pull returns everything that changed at or after the checkpoint. The server
// timestamp is captured once before the fan-out starts, so rows written while
// the pull runs are never silently skipped by the next checkpoint. When a page
// cap truncates a table, the returned timestamp is held back to the last row
// that was actually sent, so looping on the checkpoint reaches the cut-off
// rows instead of filtering them out forever.
func (s *SyncService) Pull(ctx context.Context, userID string, lastSyncAt *time.Time) (*models.SyncPullResponse, error) {
	ts := s.now().UTC()
	checkpoint := ts

	var since time.Time
	if lastSyncAt != nil {
		since = *lastSyncAt
	}

	recs := s.repomanager.Records(s.db)

	entries := []models.SyncPullEntry{}
	hasMore := false
	for _, entryType := range registry.Types() {
		cfg, err := registry.Resolve(entryType)
		if err != nil {
			return nil, err
		}
		rows, err := recs.SelectSince(ctx, cfg.Table, userID, since, cfg.EventField, s.pageSize)
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", cfg.Table, err)
		}
		if len(rows) == s.pageSize {
			hasMore = true
			if last, ok := timeField(rows[len(rows)-1], "updated_at"); ok && last.Before(checkpoint) {
				checkpoint = last
			}
		}
		for _, row := range rows {
			serverID, _ := stringField(row, "id")
			modified, _ := timeField(row, "updated_at")
			entries = append(entries, models.SyncPullEntry{
				EntryType:  entryType,
				ServerID:   serverID,
				Data:       row,
				Action:     models.ActionUpsert,
				ModifiedAt: modified,
			})
		}
	}

	tombs := s.repomanager.Tombstones(s.db)
	deleted, err := tombs.Since(ctx, userID, since, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("error reading tombstones: %w", err)
	}
	if len(deleted) == s.pageSize {
		hasMore = true
		if last := deleted[len(deleted)-1].DeletedAt; last.Before(checkpoint) {
			checkpoint = last
		}
	}
	for _, t := range deleted {
		entries = append(entries, models.SyncPullEntry{
			EntryType:  t.EntryType,
			ServerID:   t.ServerID,
			Action:     models.ActionTombstone,
			ModifiedAt: t.DeletedAt,
		})
	}

	analyses, err := s.feeds.RecentAnalyses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error reading analyses: %w", err)
	}
	podcasts, err := s.feeds.RecentPodcasts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error reading podcasts: %w", err)
	}

	return &models.SyncPullResponse{
		Entries:         entries,
		Analyses:        analyses,
		Podcasts:        podcasts,
		ServerTimestamp: checkpoint,
		HasMore:         hasMore,
	}, nil
}

// Status returns the device's checkpoint. A device that has never pushed gets
// a zero-value status rather than an error.
func (s *SyncService) Status(ctx context.Context, userID, deviceID string) (*models.SyncStatus, error) {
	statusRepo := s.repomanager.SyncStatus(s.db)
	status, err := statusRepo.Get(ctx, userID, deviceID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			status = &models.SyncStatus{
				DeviceID:   deviceID,
				SyncErrors: []models.FailedEntry{},
			}
		} else {
			return nil, fmt.Errorf("error reading sync status: %w", err)
		}
	}
	status.IsSyncing = s.isSyncing(userID, deviceID)
	return status, nil
}

// Conflicts lists the device's unresolved conflicts, oldest first.
func (s *SyncService) Conflicts(ctx context.Context, userID, deviceID string) ([]*models.SyncConflict, error) {
	return s.repomanager.Conflicts(s.db).ListByDevice(ctx, userID, deviceID)
}

// Resolve applies a client's decision to a persisted conflict and removes it.
// keep_local rewrites the server row with the client version, keep_server
// discards the client version, merge rewrites with the provided merged_data.
func (s *SyncService) Resolve(ctx context.Context, userID string, res *models.SyncConflictResolution) error {
	conflictRepo := s.repomanager.Conflicts(s.db)
	conflict, err := conflictRepo.Get(ctx, res.ConflictID, userID)
	if err != nil {
		return err
	}

	switch res.Resolution {
	case models.ResolutionKeepLocal:
		if err := s.applyResolution(ctx, userID, conflict, conflict.LocalData); err != nil {
			return err
		}
	case models.ResolutionKeepServer:
		// server row already holds the winning version
	case models.ResolutionMerge:
		if res.MergedData == nil {
			return fmt.Errorf("%w: merge requires merged_data", common.ErrorValidation)
		}
		if err := s.applyResolution(ctx, userID, conflict, res.MergedData); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown resolution %q", common.ErrorValidation, res.Resolution)
	}

	return conflictRepo.Delete(ctx, res.ConflictID, userID)
}

func (s *SyncService) applyResolution(ctx context.Context, userID string, conflict *models.SyncConflict, data map[string]any) error {
	cfg, err := registry.Resolve(conflict.EntryType)
	if err != nil {
		return err
	}
	row := maps.Clone(data)
	delete(row, "id")
	return s.repomanager.Records(s.db).Update(ctx, cfg.Table, conflict.ServerID, userID, row)
}

// Reset deletes the device's checkpoint so its next pull is a full resync.
func (s *SyncService) Reset(ctx context.Context, userID, deviceID string) error {
	return s.repomanager.SyncStatus(s.db).Delete(ctx, userID, deviceID)
}

// stringField reads a non-empty string column from a row map.
func stringField(row map[string]any, field string) (string, bool) {
	if row == nil {
		return "", false
	}
	v, ok := row[field].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// timeField reads a timestamp column from a row map. Drivers hand back
// time.Time; JSON round-trips hand back RFC 3339 strings.
func timeField(row map[string]any, field string) (time.Time, bool) {
	switch v := row[field].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}
