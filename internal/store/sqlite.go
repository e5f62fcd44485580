// Package store persists thinking sessions to a SQLite archive so they
// survive process restarts. The in-memory registry remains the engine of
// record; the archive holds whole-session snapshots.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"thinktrace/internal/model"
	"thinktrace/internal/session"
)

// Archive stores session snapshots in SQLite.
type Archive struct {
	db      *sql.DB
	entropy *rand.Rand
}

// Open opens or creates the archive database at the given path.
func Open(dbPath string) (*Archive, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	a := &Archive{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return a, nil
}

func (a *Archive) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), a.entropy).String()
}

func (a *Archive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id             TEXT PRIMARY KEY,
		title          TEXT,
		declared_total INTEGER NOT NULL DEFAULT 0,
		completed      INTEGER NOT NULL DEFAULT 0,
		created_at     TEXT NOT NULL,
		last_modified  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS thoughts (
		id              TEXT PRIMARY KEY,
		session_id      TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		seq             TEXT NOT NULL,
		position        INTEGER NOT NULL,
		number          INTEGER NOT NULL,
		text            TEXT NOT NULL,
		declared_total  INTEGER NOT NULL,
		continues       INTEGER NOT NULL,
		revision_of     INTEGER NOT NULL DEFAULT 0,
		branch_point    INTEGER NOT NULL DEFAULT 0,
		needs_expansion INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_thoughts_session ON thoughts(session_id, seq, position);

	CREATE TABLE IF NOT EXISTS branches (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		id         TEXT NOT NULL,
		parent     TEXT NOT NULL,
		fork_point INTEGER NOT NULL,
		position   INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (session_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_branches_session ON branches(session_id, position);
	`
	_, err := a.db.Exec(schema)
	return err
}

// Save writes the full session snapshot, replacing any previous rows for the
// same session id.
func (a *Archive) Save(ctx context.Context, snap model.SessionSnapshot) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM thoughts WHERE session_id = ?`,
		`DELETE FROM branches WHERE session_id = ?`,
		`DELETE FROM sessions WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, snap.SessionID); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, title, declared_total, completed, created_at, last_modified)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snap.SessionID, snap.Title, snap.Metadata.DeclaredTotal, boolInt(snap.Metadata.Completed),
		snap.Metadata.CreatedAt.UTC().Format(time.RFC3339),
		snap.Metadata.LastModified.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if err := a.insertThoughts(ctx, tx, snap.SessionID, model.MainSequence, snap.Main); err != nil {
		return err
	}
	for i, b := range snap.Branches {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO branches (session_id, id, parent, fork_point, position, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			snap.SessionID, b.ID, b.Parent, b.ForkPoint, i, b.CreatedAt.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("insert branch: %w", err)
		}
		if err := a.insertThoughts(ctx, tx, snap.SessionID, b.ID, b.Thoughts); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (a *Archive) insertThoughts(ctx context.Context, tx *sql.Tx, sessionID, seq string, thoughts []model.Thought) error {
	for i, t := range thoughts {
		id := t.ID
		if id == "" {
			id = a.newID()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO thoughts (id, session_id, seq, position, number, text, declared_total,
			                       continues, revision_of, branch_point, needs_expansion, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, sessionID, seq, i, t.Number, t.Text, t.DeclaredTotal,
			boolInt(t.Continues), t.RevisionOf, t.BranchPoint, boolInt(t.NeedsExpansion),
			t.CreatedAt.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("insert thought: %w", err)
		}
	}
	return nil
}

// Load reads a full session snapshot by id.
func (a *Archive) Load(ctx context.Context, sessionID string) (model.SessionSnapshot, error) {
	snap := model.SessionSnapshot{SessionID: sessionID}

	var completed int
	var createdAt, lastModified string
	err := a.db.QueryRowContext(ctx,
		`SELECT title, declared_total, completed, created_at, last_modified FROM sessions WHERE id = ?`,
		sessionID).Scan(&snap.Title, &snap.Metadata.DeclaredTotal, &completed, &createdAt, &lastModified)
	if err == sql.ErrNoRows {
		return snap, fmt.Errorf("%w: %q", session.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return snap, fmt.Errorf("load session: %w", err)
	}
	snap.Metadata.Completed = completed != 0
	snap.Metadata.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	snap.Metadata.LastModified, _ = time.Parse(time.RFC3339, lastModified)

	thoughts, err := a.loadThoughts(ctx, sessionID)
	if err != nil {
		return snap, err
	}
	snap.Main = thoughts[model.MainSequence]

	rows, err := a.db.QueryContext(ctx,
		`SELECT id, parent, fork_point, created_at FROM branches WHERE session_id = ? ORDER BY position`,
		sessionID)
	if err != nil {
		return snap, fmt.Errorf("load branches: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b model.Branch
		var created string
		if err := rows.Scan(&b.ID, &b.Parent, &b.ForkPoint, &created); err != nil {
			return snap, fmt.Errorf("scan branch: %w", err)
		}
		b.CreatedAt, _ = time.Parse(time.RFC3339, created)
		b.Thoughts = thoughts[b.ID]
		snap.Branches = append(snap.Branches, b)
	}
	return snap, rows.Err()
}

func (a *Archive) loadThoughts(ctx context.Context, sessionID string) (map[string][]model.Thought, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, seq, number, text, declared_total, continues, revision_of, branch_point,
		        needs_expansion, created_at
		 FROM thoughts WHERE session_id = ? ORDER BY seq, position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load thoughts: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]model.Thought)
	for rows.Next() {
		var t model.Thought
		var seq, created string
		var continues, needsExpansion int
		err := rows.Scan(&t.ID, &seq, &t.Number, &t.Text, &t.DeclaredTotal,
			&continues, &t.RevisionOf, &t.BranchPoint, &needsExpansion, &created)
		if err != nil {
			return nil, fmt.Errorf("scan thought: %w", err)
		}
		t.Continues = continues != 0
		t.NeedsExpansion = needsExpansion != 0
		t.CreatedAt, _ = time.Parse(time.RFC3339, created)
		if seq != model.MainSequence {
			t.BranchID = seq
		}
		out[seq] = append(out[seq], t)
	}
	return out, rows.Err()
}

// SessionInfo is one archive listing entry.
type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title,omitempty"`
	Thoughts     int       `json:"thoughts"`
	Branches     int       `json:"branches"`
	Completed    bool      `json:"completed"`
	LastModified time.Time `json:"last_modified"`
}

// List returns all archived sessions, most recently modified first.
func (a *Archive) List(ctx context.Context) ([]SessionInfo, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT s.id, s.title, s.completed, s.last_modified,
		       (SELECT COUNT(*) FROM thoughts t WHERE t.session_id = s.id),
		       (SELECT COUNT(*) FROM branches b WHERE b.session_id = s.id)
		FROM sessions s ORDER BY s.last_modified DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var completed int
		var lastModified string
		if err := rows.Scan(&info.SessionID, &info.Title, &completed, &lastModified,
			&info.Thoughts, &info.Branches); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		info.Completed = completed != 0
		info.LastModified, _ = time.Parse(time.RFC3339, lastModified)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete removes an archived session; thought and branch rows go with it via
// the cascading foreign keys.
func (a *Archive) Delete(ctx context.Context, sessionID string) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", session.ErrSessionNotFound, sessionID)
	}
	return nil
}

// Stats summarizes the archive contents.
type Stats struct {
	Sessions  int   `json:"sessions"`
	Completed int   `json:"completed"`
	Thoughts  int   `json:"thoughts"`
	Branches  int   `json:"branches"`
	DBSize    int64 `json:"db_size_bytes"`
}

// Stats returns aggregate counts and the on-disk database size.
func (a *Archive) Stats(ctx context.Context, dbPath string) (Stats, error) {
	var st Stats
	err := a.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM sessions),
		       (SELECT COUNT(*) FROM sessions WHERE completed = 1),
		       (SELECT COUNT(*) FROM thoughts),
		       (SELECT COUNT(*) FROM branches)`).
		Scan(&st.Sessions, &st.Completed, &st.Thoughts, &st.Branches)
	if err != nil {
		return st, fmt.Errorf("stats: %w", err)
	}
	if info, err := os.Stat(dbPath); err == nil {
		st.DBSize = info.Size()
	}
	return st, nil
}

// Close closes the archive.
func (a *Archive) Close() error {
	return a.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
