// Package state implements StateStore (spec.md §4.8): writes and reads
// versioned Snapshots under a per-account directory, verifying the
// resources checksum on every read, and enumerating by account or time
// range. Retention deletes snapshots older than retention_days only on
// explicit invocation, never implicitly.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/habhabhabs/inventag-go/internal/model"
)

const schemaVersion = "1"

// Store is a filesystem-backed StateStore rooted at Dir.
type Store struct {
	Dir             string
	ProducerVersion string
}

// New returns a Store writing snapshots under dir (created lazily on Write).
func New(dir, producerVersion string) *Store {
	return &Store{Dir: dir, ProducerVersion: producerVersion}
}

// Write persists resources as a new immutable Snapshot for accountID,
// sorted by arn (falling back to Key() for arn-less resources), with a
// SHA-256 checksum over the canonical JSON of the sorted resources.
func (s *Store) Write(accountID string, regions []string, resources []model.Resource, at time.Time) (model.Snapshot, error) {
	sorted := append([]model.Resource{}, resources...)
	sort.Slice(sorted, func(i, j int) bool { return sortKey(sorted[i]) < sortKey(sorted[j]) })

	checksum, err := model.Checksum(sorted)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("state: computing checksum: %w", err)
	}

	snap := model.Snapshot{
		Header: model.SnapshotHeader{
			SchemaVersion:   schemaVersion,
			ProducerVersion: s.ProducerVersion,
			SnapshotID:      snapshotID(accountID, at),
			AccountID:       accountID,
			Regions:         regions,
			CreatedAt:       at,
		},
		Resources: sorted,
		Checksum:  checksum,
	}

	if err := os.MkdirAll(s.accountDir(accountID), 0o755); err != nil {
		return model.Snapshot{}, fmt.Errorf("state: creating account directory: %w", err)
	}
	path := s.snapshotPath(accountID, snap.Header.SnapshotID)
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("state: marshaling snapshot: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return model.Snapshot{}, fmt.Errorf("state: writing snapshot: %w", err)
	}
	return snap, nil
}

// Read loads the snapshot at path and verifies its checksum, returning
// *model.ErrIntegrity on mismatch per spec.md §4.8.
func (s *Store) Read(path string) (model.Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("state: reading snapshot %s: %w", path, err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("state: parsing snapshot %s: %w", path, err)
	}
	want, err := model.Checksum(snap.Resources)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("state: recomputing checksum: %w", err)
	}
	if want != snap.Checksum {
		return model.Snapshot{}, &model.ErrIntegrity{SnapshotID: snap.Header.SnapshotID, Expected: snap.Checksum, Actual: want}
	}
	return snap, nil
}

// Latest returns the most recently created snapshot for accountID, or
// (Snapshot{}, false, nil) if none exists.
func (s *Store) Latest(accountID string) (model.Snapshot, bool, error) {
	snapshots, err := s.Enumerate(accountID, time.Time{}, time.Time{})
	if err != nil {
		return model.Snapshot{}, false, err
	}
	if len(snapshots) == 0 {
		return model.Snapshot{}, false, nil
	}
	return snapshots[len(snapshots)-1], true, nil
}

// Enumerate lists every snapshot for accountID (all accounts if accountID
// is "") whose CreatedAt falls within [from, to] (zero times are open-ended),
// sorted oldest-first.
func (s *Store) Enumerate(accountID string, from, to time.Time) ([]model.Snapshot, error) {
	var dirs []string
	if accountID != "" {
		dirs = []string{s.accountDir(accountID)}
	} else {
		entries, err := os.ReadDir(s.Dir)
		if os.IsNotExist(err) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("state: listing accounts: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				dirs = append(dirs, filepath.Join(s.Dir, e.Name()))
			}
		}
	}

	var out []model.Snapshot
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("state: listing snapshots in %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			snap, err := s.Read(filepath.Join(dir, e.Name()))
			if err != nil {
				return nil, err
			}
			if !from.IsZero() && snap.Header.CreatedAt.Before(from) {
				continue
			}
			if !to.IsZero() && snap.Header.CreatedAt.After(to) {
				continue
			}
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Header.CreatedAt.Before(out[j].Header.CreatedAt) })
	return out, nil
}

// Retain deletes every snapshot older than retentionDays, relative to now.
// Only ever called explicitly by the caller; never invoked implicitly by
// Write or Read, per spec.md §4.8.
func (s *Store) Retain(retentionDays int, now time.Time) (deleted int, err error) {
	cutoff := now.AddDate(0, 0, -retentionDays)
	snapshots, err := s.Enumerate("", time.Time{}, time.Time{})
	if err != nil {
		return 0, err
	}
	for _, snap := range snapshots {
		if snap.Header.CreatedAt.After(cutoff) {
			continue
		}
		path := s.snapshotPath(snap.Header.AccountID, snap.Header.SnapshotID)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return deleted, fmt.Errorf("state: removing expired snapshot %s: %w", path, err)
		}
		deleted++
	}
	return deleted, nil
}

func (s *Store) accountDir(accountID string) string {
	return filepath.Join(s.Dir, accountID)
}

func (s *Store) snapshotPath(accountID, snapshotID string) string {
	return filepath.Join(s.accountDir(accountID), snapshotID+".json")
}

// snapshotID is monotonic-by-construction within an account: after the
// account-id prefix, a fixed-width UTC timestamp with nanoseconds sorts
// lexically in creation order, matching spec.md §4.8's "snapshot_id
// (monotonic + timestamp)". A trailing UUIDv4 segment keeps two Writes for
// the same account in the same nanosecond from colliding on disk.
func snapshotID(accountID string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%s", accountID, at.UTC().Format("20060102T150405.000000000Z"), uuid.NewString())
}

func sortKey(r model.Resource) string {
	if r.ARN != "" {
		return r.ARN
	}
	return r.Key()
}
