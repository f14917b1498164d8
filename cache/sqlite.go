package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	serializer "github.com/always-cache/cacheclient/pkg/response-serializer"
)

// SQLiteStore is a Store backed by an in-memory SQLite database.
// Responses are kept in their HTTP/1.1 representation.
type SQLiteStore struct {
	db         *sql.DB
	writeMutex *sync.Mutex
	opts       Options
	log        zerolog.Logger
	// logical clock for least recently accessed eviction
	tick    int64
	version uint64
	token   uint64

	evictions atomic.Int64
	rejected  atomic.Int64
}

// NewSQLiteStore opens a new private in-memory database.
func NewSQLiteStore(opts Options, log zerolog.Logger) (*SQLiteStore, error) {
	name := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := sql.Open("sqlite", name)
	if err != nil {
		return nil, err
	}
	// the database lives as long as its connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		key TEXT PRIMARY KEY,
		version INTEGER,
		response BLOB,
		requested_at INTEGER,
		stored_at INTEGER,
		initial_age INTEGER,
		max_age INTEGER,
		stale_while_revalidate INTEGER,
		accessed_at INTEGER
	)`)
	if err != nil {
		db.Close()
		return nil, err
	}
	// revalidations in flight, independent of the entries they refresh
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS revalidations (
		key TEXT PRIMARY KEY,
		token INTEGER
	)`)
	if err != nil {
		db.Close()
		return nil, err
	}
	_, err = db.Exec("CREATE INDEX IF NOT EXISTS accessed_at_idx ON entries (accessed_at)")
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{
		db:         db,
		writeMutex: &sync.Mutex{},
		opts:       opts.withDefaults(),
		log:        log.With().Str("store", "sqlite").Logger(),
	}, nil
}

func (s *SQLiteStore) Get(key string) (Entry, bool, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	var entry Entry
	var bytes []byte
	var version, req, stored, age, maxAge, swr, reval int64
	err := s.db.QueryRow(`SELECT version, response, requested_at, stored_at,
		initial_age, max_age, stale_while_revalidate,
		(SELECT COUNT(*) FROM revalidations WHERE revalidations.key = entries.key)
		FROM entries WHERE key = ?`, key).
		Scan(&version, &bytes, &req, &stored, &age, &maxAge, &swr, &reval)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	} else if err != nil {
		return Entry{}, false, err
	}
	res, err := serializer.BytesToResponse(bytes)
	if err != nil {
		return Entry{}, false, fmt.Errorf("could not decode entry %s: %w", key, err)
	}
	s.tick++
	if _, err := s.db.Exec("UPDATE entries SET accessed_at = ? WHERE key = ?", s.tick, key); err != nil {
		return Entry{}, false, err
	}

	entry.Key = key
	entry.Version = uint64(version)
	entry.StatusCode = res.StatusCode
	entry.Header = res.Header
	entry.Body = res.Body
	entry.RequestedAt = time.Unix(0, req)
	entry.StoredAt = time.Unix(0, stored)
	entry.InitialAge = time.Duration(age)
	entry.MaxAge = time.Duration(maxAge)
	entry.StaleWhileRevalidate = time.Duration(swr)
	if reval != 0 {
		entry.State = Revalidating
	}
	return entry, true, nil
}

func (s *SQLiteStore) Put(entry Entry) (bool, error) {
	if entry.Size() > s.opts.MaxObjectSize {
		s.rejected.Add(1)
		s.log.Debug().Str("key", entry.Key).Int64("size", entry.Size()).Msg("Entry too large to store")
		return false, nil
	}
	bytes := serializer.ResponseToBytes(serializer.StoredResponse{
		StatusCode: entry.StatusCode,
		Header:     entry.Header,
		Body:       entry.Body,
	})

	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow("SELECT COUNT(*) FROM entries WHERE key = ?", entry.Key).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists == 0 {
		var count int
		if err := tx.QueryRow("SELECT COUNT(*) FROM entries").Scan(&count); err != nil {
			return false, err
		}
		if excess := count - s.opts.MaxEntries + 1; excess > 0 {
			evicted, err := evictOldest(tx, excess)
			if err != nil {
				return false, err
			}
			for _, key := range evicted {
				s.log.Debug().Str("key", key).Msg("Evicted entry")
			}
			s.evictions.Add(int64(len(evicted)))
		}
	}

	s.version++
	s.tick++
	_, err = tx.Exec(`INSERT OR REPLACE INTO entries
		(key, version, response, requested_at, stored_at, initial_age,
		max_age, stale_while_revalidate, accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Key, int64(s.version), bytes, entry.RequestedAt.UnixNano(), entry.StoredAt.UnixNano(),
		int64(entry.InitialAge), int64(entry.MaxAge), int64(entry.StaleWhileRevalidate), s.tick)
	if err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func evictOldest(tx *sql.Tx, n int) ([]string, error) {
	rows, err := tx.Query("SELECT key FROM entries ORDER BY accessed_at ASC LIMIT ?", n)
	if err != nil {
		return nil, err
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, err
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, key := range keys {
		if _, err := tx.Exec("DELETE FROM entries WHERE key = ?", key); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func (s *SQLiteStore) Invalidate(key string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM entries WHERE key = ?", key)
	return err
}

func (s *SQLiteStore) Len() int {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&count); err != nil {
		s.log.Error().Err(err).Msg("Could not count entries")
		return 0
	}
	return count
}

func (s *SQLiteStore) BeginRevalidation(key string) (uint64, bool, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	var exists int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM entries WHERE key = ?", key).Scan(&exists); err != nil {
		return 0, false, err
	}
	if exists == 0 {
		return 0, false, nil
	}
	s.token++
	result, err := s.db.Exec("INSERT OR IGNORE INTO revalidations (key, token) VALUES (?, ?)", key, int64(s.token))
	if err != nil {
		return 0, false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	return s.token, n == 1, nil
}

func (s *SQLiteStore) EndRevalidation(key string, token uint64) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM revalidations WHERE key = ? AND token = ?", key, int64(token))
	return err
}

func (s *SQLiteStore) Stats() Stats {
	return Stats{
		Size:      s.Len(),
		MaxSize:   s.opts.MaxEntries,
		Evictions: s.evictions.Load(),
		Rejected:  s.rejected.Load(),
	}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
