// Package repository persists pipeline results: selected hotspots,
// trending repos and models, and the rendered daily report.
package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"

	"github.com/dailyhot/hotspot/pkg/db"
)

// Repositories contains all repository instances
type Repositories struct {
	Hotspot  *HotspotRepository
	Trending *TrendingRepository
	Report   *ReportRepository
}

// NewRepositories creates all repositories with a shared database connection
func NewRepositories(database *db.DB) *Repositories {
	return &Repositories{
		Hotspot:  NewHotspotRepository(database),
		Trending: NewTrendingRepository(database),
		Report:   NewReportRepository(database),
	}
}

// errCritical marks a database failure that retrying cannot fix
var errCritical = errors.New("critical db error")

// withLockRetry runs fn retrying SQLite lock/busy errors with backoff,
// fn wraps non-retryable failures in errCritical to stop early
func withLockRetry(ctx context.Context, fn func() error) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	return retrier.Do(ctx, fn, errCritical)
}

// isLockError checks if an error is a SQLite lock/busy error
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked")
}

// stringsSQL is a JSON array of strings for SQL operations
type stringsSQL []string

// Value implements driver.Valuer for database storage
func (s stringsSQL) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for database retrieval
func (s *stringsSQL) Scan(value interface{}) error {
	if value == nil {
		*s = stringsSQL{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for strings column", value)
	}

	return json.Unmarshal(data, s)
}
