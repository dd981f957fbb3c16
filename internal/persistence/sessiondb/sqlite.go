// Package sessiondb is a secondary SQLite index of session lifecycles and
// desyncs. The JSONL trace logs stay the source of truth; rows are dropped
// when the writer falls behind.
package sessiondb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"oreinfinium.net/internal/config"
	"oreinfinium.net/internal/server"
	"oreinfinium.net/internal/sim/catalogs"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type reqKind int

const (
	reqSession reqKind = iota + 1
	reqDisconnect
	reqDesync
)

type req struct {
	kind reqKind

	session    server.SessionRecord
	disconnect server.DisconnectRecord
	desync     DesyncRecord
}

// DesyncRecord is written by a client that ended its session on a desync.
type DesyncRecord struct {
	PlayerName string
	Op         string
	NetworkID  uint64
	LocalID    int32
	Reason     string
	Tick       uint64
	At         time.Time
}

type Stats struct {
	Dropped       uint64
	QueueDepth    int
	QueueCapacity int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{db: db, ch: make(chan req, queue)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session INTEGER PRIMARY KEY,
			player_name TEXT NOT NULL,
			client_uuid TEXT NOT NULL,
			version TEXT NOT NULL,
			tick INTEGER NOT NULL,
			joined_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS disconnects (
			session INTEGER PRIMARY KEY,
			reason TEXT NOT NULL,
			detail TEXT,
			tick INTEGER NOT NULL,
			left_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_disconnects_reason ON disconnects(reason);`,
		`CREATE TABLE IF NOT EXISTS desyncs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			player_name TEXT NOT NULL,
			op TEXT NOT NULL,
			network_id INTEGER NOT NULL,
			local_id INTEGER NOT NULL,
			reason TEXT NOT NULL,
			tick INTEGER NOT NULL,
			at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) RecordSession(r server.SessionRecord) {
	s.enqueue(req{kind: reqSession, session: r})
}

func (s *SQLiteIndex) RecordDisconnect(r server.DisconnectRecord) {
	s.enqueue(req{kind: reqDisconnect, disconnect: r})
}

func (s *SQLiteIndex) RecordDesync(r DesyncRecord) {
	s.enqueue(req{kind: reqDesync, desync: r})
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{Dropped: s.dropped.Load(), QueueDepth: len(s.ch), QueueCapacity: cap(s.ch)}
}

// UpsertCatalogs stores the catalog digests and the tuning in effect, so a
// session row can be traced back to the rules it ran under.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs, cfg config.Config) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, _ := json.Marshal(cats.Textures.ByName); len(b) > 0 {
		rows = append(rows, kv{name: "textures", digest: cats.Textures.Digest, json: b})
	}
	if b, _ := json.Marshal(cats.Items.Defs); len(b) > 0 {
		rows = append(rows, kv{name: "items", digest: cats.Items.Digest, json: b})
	}
	{
		b, _ := json.Marshal(cfg)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertSession, _ := s.db.Prepare(`INSERT OR REPLACE INTO sessions(session,player_name,client_uuid,version,tick,joined_at) VALUES(?,?,?,?,?,?)`)
	insertDisconnect, _ := s.db.Prepare(`INSERT OR REPLACE INTO disconnects(session,reason,detail,tick,left_at) VALUES(?,?,?,?,?)`)
	insertDesync, _ := s.db.Prepare(`INSERT INTO desyncs(player_name,op,network_id,local_id,reason,tick,at) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertSession, insertDisconnect, insertDesync} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqSession:
			se := r.session
			exec(insertSession, int64(se.Session), se.PlayerName, se.ClientUUID, se.Version, int64(se.Tick), se.At.UTC().Format(time.RFC3339Nano))
		case reqDisconnect:
			d := r.disconnect
			exec(insertDisconnect, int64(d.Session), d.Reason, d.Detail, int64(d.Tick), d.At.UTC().Format(time.RFC3339Nano))
		case reqDesync:
			d := r.desync
			exec(insertDesync, d.PlayerName, d.Op, int64(d.NetworkID), int64(d.LocalID), d.Reason, int64(d.Tick), d.At.UTC().Format(time.RFC3339Nano))
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
