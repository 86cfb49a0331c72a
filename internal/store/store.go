// Package store persists portfolio snapshots. The core only ever loads a full snapshot
// and saves a full snapshot; backends differ in medium, not in contract.
package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"strategy-mcp/internal/portfolio"
)

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Store loads and saves whole portfolio snapshots.
type Store interface {
	// Load returns the current snapshot, or an empty one if nothing was saved yet.
	Load(ctx context.Context) (*portfolio.Snapshot, error)
	// Save replaces the stored snapshot.
	Save(ctx context.Context, snap *portfolio.Snapshot) error
	Close() error
}

// Open creates the backend selected by name under dataPath.
func Open(backend, dataPath string) (Store, error) {
	switch backend {
	case "", BackendJSON:
		return NewJSONStore(filepath.Join(dataPath, "strategy.json"))
	case BackendSQLite:
		return OpenSQLite(filepath.Join(dataPath, "strategy.db"))
	}
	return nil, fmt.Errorf("unknown store backend %q (want json or sqlite)", backend)
}

// stamp prepares a snapshot for writing.
func stamp(snap *portfolio.Snapshot) {
	snap.SchemaVersion = portfolio.SchemaVersion
	snap.SavedAt = time.Now().UTC()
}

// checkVersion upgrades unversioned snapshots and rejects ones from a newer build.
func checkVersion(snap *portfolio.Snapshot) error {
	switch {
	case snap.SchemaVersion == 0:
		snap.SchemaVersion = portfolio.SchemaVersion
	case snap.SchemaVersion > portfolio.SchemaVersion:
		return fmt.Errorf("snapshot schema version %d is newer than supported version %d", snap.SchemaVersion, portfolio.SchemaVersion)
	}
	return nil
}
