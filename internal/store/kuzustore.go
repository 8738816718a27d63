//go:build cgo

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	kuzu "github.com/kuzudb/go-kuzu"

	"github.com/dusk-indust/onesheet/internal/creative"
)

// KuzuStore keeps each OneSheet document on a OneSheet node and mirrors its
// concepts and hooks as graph nodes so hook-to-concept links can be queried.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	// mu serializes access to conn; a transaction spans several queries.
	mu   sync.Mutex
	db   *kuzu.Database
	conn *kuzu.Connection
	now  func() time.Time
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a database directory at
// dbPath. KuzuDB creates the leaf directory itself.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	db, err := kuzu.OpenDatabase(path, kuzu.DefaultSystemConfig())
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	s := &KuzuStore{db: db, conn: conn, now: time.Now}
	if err := s.initSchema(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	return nil
}

// ddlStatements must list node tables before relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS OneSheet(
		target_id STRING,
		document STRING,
		updated_at INT64,
		PRIMARY KEY(target_id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Concept(
		key STRING,
		concept_id STRING,
		title STRING,
		seq INT64,
		PRIMARY KEY(key)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Hook(
		key STRING,
		hook_id STRING,
		kind STRING,
		text STRING,
		concept_id STRING,
		seq INT64,
		PRIMARY KEY(key)
	)`,
	`CREATE REL TABLE IF NOT EXISTS HAS_CONCEPT(FROM OneSheet TO Concept)`,
	`CREATE REL TABLE IF NOT EXISTS HAS_HOOK(FROM OneSheet TO Hook)`,
	`CREATE REL TABLE IF NOT EXISTS HOOKS_CONCEPT(FROM Hook TO Concept)`,
}

func (s *KuzuStore) initSchema() error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// Save replaces the document and its mirrored nodes in one transaction.
func (s *KuzuStore) Save(_ context.Context, targetID string, agg creative.AggregateResult) error {
	if targetID == "" {
		return fmt.Errorf("store: save: empty target id")
	}
	doc, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", targetID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.run("BEGIN TRANSACTION"); err != nil {
		return err
	}
	if err := s.replace(targetID, string(doc), agg); err != nil {
		return errors.Join(err, s.run("ROLLBACK"))
	}
	return s.run("COMMIT")
}

func (s *KuzuStore) replace(targetID, doc string, agg creative.AggregateResult) error {
	t := map[string]any{"t": targetID}
	cleanup := []string{
		`MATCH (o:OneSheet {target_id: $t})-[:HAS_HOOK]->(h:Hook) DETACH DELETE h`,
		`MATCH (o:OneSheet {target_id: $t})-[:HAS_CONCEPT]->(c:Concept) DETACH DELETE c`,
		`MATCH (o:OneSheet {target_id: $t}) DETACH DELETE o`,
	}
	for _, q := range cleanup {
		if err := s.exec(q, t); err != nil {
			return err
		}
	}

	if err := s.exec(
		"CREATE (o:OneSheet {target_id: $t, document: $doc, updated_at: $ts})",
		map[string]any{"t": targetID, "doc": doc, "ts": s.now().UnixNano()},
	); err != nil {
		return err
	}

	for i, c := range agg.Concepts {
		err := s.exec(
			`MATCH (o:OneSheet {target_id: $t})
			 CREATE (o)-[:HAS_CONCEPT]->(:Concept {key: $key, concept_id: $cid, title: $title, seq: $seq})`,
			map[string]any{
				"t":     targetID,
				"key":   nodeKey(targetID, c.ID),
				"cid":   c.ID,
				"title": c.Title,
				"seq":   int64(i),
			},
		)
		if err != nil {
			return err
		}
	}

	seq := 0
	addHooks := func(kind HookKind, hooks []creative.Hook) error {
		for _, h := range hooks {
			key := nodeKey(targetID, h.ID)
			err := s.exec(
				`MATCH (o:OneSheet {target_id: $t})
				 CREATE (o)-[:HAS_HOOK]->(:Hook {key: $key, hook_id: $hid, kind: $kind, text: $text, concept_id: $cid, seq: $seq})`,
				map[string]any{
					"t":    targetID,
					"key":  key,
					"hid":  h.ID,
					"kind": string(kind),
					"text": h.Text,
					"cid":  h.ConceptID,
					"seq":  int64(seq),
				},
			)
			if err != nil {
				return err
			}
			seq++
			if h.ConceptID == "" {
				continue
			}
			// No edge is created when the concept is absent.
			err = s.exec(
				`MATCH (h:Hook {key: $hk}), (c:Concept {key: $ck})
				 CREATE (h)-[:HOOKS_CONCEPT]->(c)`,
				map[string]any{"hk": key, "ck": nodeKey(targetID, h.ConceptID)},
			)
			if err != nil {
				return err
			}
		}
		return nil
	}
	if err := addHooks(HookVisual, agg.Hooks.Visual); err != nil {
		return err
	}
	return addHooks(HookAudio, agg.Hooks.Audio)
}

// Load reads the document stored on the OneSheet node.
func (s *KuzuStore) Load(_ context.Context, targetID string) (creative.AggregateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.document(targetID)
	if err != nil {
		return creative.AggregateResult{}, err
	}
	return decodeDocument(targetID, []byte(doc))
}

func (s *KuzuStore) document(targetID string) (string, error) {
	rows, err := s.query(
		"MATCH (o:OneSheet {target_id: $t}) RETURN o.document",
		map[string]any{"t": targetID},
	)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, targetID)
	}
	return toString(rows[0][0]), nil
}

// HooksForConcept follows HOOKS_CONCEPT edges into conceptID.
func (s *KuzuStore) HooksForConcept(_ context.Context, targetID, conceptID string) ([]ConceptHook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.document(targetID); err != nil {
		return nil, err
	}
	rows, err := s.query(
		`MATCH (o:OneSheet {target_id: $t})-[:HAS_HOOK]->(h:Hook)-[:HOOKS_CONCEPT]->(c:Concept {key: $ck})
		 RETURN h.kind, h.hook_id, h.text, c.concept_id
		 ORDER BY h.seq`,
		map[string]any{"t": targetID, "ck": nodeKey(targetID, conceptID)},
	)
	if err != nil {
		return nil, err
	}
	out := make([]ConceptHook, 0, len(rows))
	for _, r := range rows {
		out = append(out, ConceptHook{
			Kind: HookKind(toString(r[0])),
			Hook: creative.Hook{
				ID:        toString(r[1]),
				Text:      toString(r[2]),
				ConceptID: toString(r[3]),
			},
		})
	}
	return out, nil
}

// Targets lists OneSheet nodes by target id.
func (s *KuzuStore) Targets(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.query("MATCH (o:OneSheet) RETURN o.target_id ORDER BY o.target_id", nil)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, toString(r[0]))
	}
	return out, nil
}

// ---------- Internal helpers ----------

// nodeKey scopes concept and hook ids to their target. The length prefix
// keeps "a/b"+"c" and "a"+"b/c" apart.
func nodeKey(targetID, id string) string {
	return strconv.Itoa(len(targetID)) + ":" + targetID + "/" + id
}

func (s *KuzuStore) run(cypher string) error {
	res, err := s.conn.Query(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: %s: %w", cypher, err)
	}
	res.Close()
	return nil
}

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a Cypher statement and collects all rows in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
