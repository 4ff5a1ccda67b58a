// Package cache implements the durable, TTL-bounded result cache
// described in spec §4.F, backed by an embedded SQLite database via
// modernc.org/sqlite (pure Go, no cgo).
package cache

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/use-agent/agentweb/apperr"
	"github.com/use-agent/agentweb/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS page_cache (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL,
	query TEXT NOT NULL DEFAULT '',
	backend TEXT NOT NULL,
	result_json TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	hit_count INTEGER NOT NULL DEFAULT 0,
	last_hit INTEGER NOT NULL DEFAULT 0,
	UNIQUE(url, query)
);
CREATE INDEX IF NOT EXISTS idx_page_cache_expires_at ON page_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_page_cache_last_hit ON page_cache(last_hit);
`

const maxStripDepth = 10

// Options configures the cache per spec §4.F's "Configuration enumerated".
type Options struct {
	TTLMs      int64
	MaxEntries int
	DBPath     string
	Verbose    bool
}

func (o Options) withDefaults() Options {
	if o.TTLMs <= 0 {
		o.TTLMs = 600000
	}
	if o.MaxEntries <= 0 {
		o.MaxEntries = 500
	}
	if o.DBPath == "" {
		home, _ := os.UserHomeDir()
		o.DBPath = filepath.Join(home, ".agentweb", "cache.db")
	}
	return o
}

// Cache is the persistent key->RenderResult store. It is safe for
// concurrent use; the underlying sql.DB serializes writes itself.
type Cache struct {
	db   *sql.DB
	opts Options
	mu   sync.Mutex // serializes eviction against concurrent sets
}

// Open opens (creating if necessary) the cache database at opts.DBPath.
func Open(opts Options) (*Cache, error) {
	opts = opts.withDefaults()

	if dir := filepath.Dir(opts.DBPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperr.New(apperr.CacheIO, "creating cache directory", err)
		}
	}

	db, err := sql.Open("sqlite", opts.DBPath)
	if err != nil {
		return nil, apperr.New(apperr.CacheIO, "opening cache database", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperr.New(apperr.CacheIO, "creating cache schema", err)
	}

	return &Cache{db: db, opts: opts}, nil
}

// Get implements get(url, query) -> RenderResult | null.
func (c *Cache) Get(url, query string) (*model.RenderResult, error) {
	now := nowMS()

	row := c.db.QueryRow(
		`SELECT id, result_json, expires_at FROM page_cache WHERE url = ? AND query = ?`,
		url, query,
	)
	var id int64
	var resultJSON string
	var expiresAt int64
	if err := row.Scan(&id, &resultJSON, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.New(apperr.CacheIO, "reading cache row", err)
	}

	if expiresAt < now {
		_, _ = c.db.Exec(`DELETE FROM page_cache WHERE id = ?`, id)
		return nil, nil
	}

	var result model.RenderResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		// Parse failures are treated as a miss; the entry is left in
		// place per spec §7, not deleted automatically.
		return nil, apperr.New(apperr.Parse, "decoding cached result", err)
	}

	if _, err := c.db.Exec(
		`UPDATE page_cache SET hit_count = hit_count + 1, last_hit = ? WHERE id = ?`,
		now, id,
	); err != nil {
		return nil, apperr.New(apperr.CacheIO, "updating hit counters", err)
	}

	result.Cached = true
	return &result, nil
}

// Set implements set(url, query, result, ttlMs?). A ttlMs of 0 means
// the cache's default TTL; a negative ttlMs stores an already-expired row.
func (c *Cache) Set(url, query string, result model.RenderResult, ttlMs int64) error {
	if ttlMs == 0 {
		ttlMs = c.opts.TTLMs
	}

	stripped, err := stripForStorage(result)
	if err != nil {
		return apperr.New(apperr.CacheIO, "serializing result", err)
	}

	now := nowMS()
	_, err = c.db.Exec(
		`INSERT INTO page_cache (url, query, backend, result_json, created_at, expires_at, hit_count, last_hit)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)
		 ON CONFLICT(url, query) DO UPDATE SET
			backend = excluded.backend,
			result_json = excluded.result_json,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			hit_count = 0,
			last_hit = excluded.last_hit`,
		url, query, string(result.Backend), stripped, now, now+ttlMs, now,
	)
	if err != nil {
		return apperr.New(apperr.CacheIO, "writing cache row", err)
	}

	return c.evict()
}

// Invalidate implements invalidate(url) -> count.
func (c *Cache) Invalidate(url string) (int, error) {
	res, err := c.db.Exec(`DELETE FROM page_cache WHERE url = ?`, url)
	if err != nil {
		return 0, apperr.New(apperr.CacheIO, "invalidating cache entries", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// PurgeExpired implements purgeExpired() -> count.
func (c *Cache) PurgeExpired() (int, error) {
	res, err := c.db.Exec(`DELETE FROM page_cache WHERE expires_at < ?`, nowMS())
	if err != nil {
		return 0, apperr.New(apperr.CacheIO, "purging expired cache entries", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Stats implements stats() -> CacheStats.
func (c *Cache) Stats() (*model.CacheStats, error) {
	now := nowMS()
	stats := &model.CacheStats{Backends: make(map[string]int)}

	if err := c.db.QueryRow(`SELECT COUNT(*) FROM page_cache`).Scan(&stats.Entries); err != nil {
		return nil, apperr.New(apperr.CacheIO, "counting cache entries", err)
	}
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM page_cache WHERE expires_at < ?`, now).Scan(&stats.Expired); err != nil {
		return nil, apperr.New(apperr.CacheIO, "counting expired cache entries", err)
	}
	stats.Active = stats.Entries - stats.Expired

	rows, err := c.db.Query(`SELECT backend, COUNT(*) FROM page_cache GROUP BY backend`)
	if err != nil {
		return nil, apperr.New(apperr.CacheIO, "grouping cache entries by backend", err)
	}
	for rows.Next() {
		var backend string
		var count int
		if err := rows.Scan(&backend, &count); err != nil {
			rows.Close()
			return nil, apperr.New(apperr.CacheIO, "scanning backend counts", err)
		}
		stats.Backends[backend] = count
	}
	rows.Close()

	var oldest sql.NullInt64
	if err := c.db.QueryRow(`SELECT MIN(created_at) FROM page_cache`).Scan(&oldest); err != nil {
		return nil, apperr.New(apperr.CacheIO, "finding oldest cache entry", err)
	}
	if oldest.Valid {
		stats.OldestMS = now - oldest.Int64
	}

	topRows, err := c.db.Query(
		`SELECT url, query, backend, hit_count FROM page_cache ORDER BY hit_count DESC LIMIT 5`,
	)
	if err != nil {
		return nil, apperr.New(apperr.CacheIO, "finding top cache entries", err)
	}
	defer topRows.Close()
	for topRows.Next() {
		var s model.CacheEntrySummary
		var backend string
		if err := topRows.Scan(&s.URL, &s.Query, &backend, &s.HitCount); err != nil {
			return nil, apperr.New(apperr.CacheIO, "scanning top cache entries", err)
		}
		s.Backend = model.Backend(backend)
		stats.TopHits = append(stats.TopHits, s)
	}

	return stats, nil
}

// Close closes the underlying database connection. It is idempotent.
func (c *Cache) Close() error {
	return c.db.Close()
}

// evict enforces maxEntries by deleting expired rows first, then the
// least-recently-hit rows, per spec §4.F's eviction ordering.
func (c *Cache) evict() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var count int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM page_cache`).Scan(&count); err != nil {
		return apperr.New(apperr.CacheIO, "counting cache entries for eviction", err)
	}
	overflow := count - c.opts.MaxEntries
	if overflow <= 0 {
		return nil
	}

	_, err := c.db.Exec(
		`DELETE FROM page_cache WHERE id IN (
			SELECT id FROM page_cache
			ORDER BY (expires_at < ?) DESC, last_hit ASC
			LIMIT ?
		)`,
		nowMS(), overflow,
	)
	if err != nil {
		return apperr.New(apperr.CacheIO, "evicting cache entries", err)
	}
	return nil
}

// stripForStorage serializes result to JSON after a depth-capped walk
// that drops any value nested deeper than 10 levels, matching spec
// §4.F's "recursive walk, depth cap 10" rule. agentweb's RenderResult
// has no callable fields, so the only observable effect in practice
// is the depth cap.
func stripForStorage(result model.RenderResult) (string, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	stripped := stripDepth(generic, maxStripDepth)
	out, err := json.Marshal(stripped)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func stripDepth(v interface{}, depth int) interface{} {
	if depth <= 0 {
		return nil
	}
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			out[k] = stripDepth(child, depth-1)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, child := range val {
			out[i] = stripDepth(child, depth-1)
		}
		return out
	default:
		return val
	}
}

func nowMS() int64 {
	return time.Now().UnixMilli()
}
