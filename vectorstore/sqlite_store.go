package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// IndexFile is the database file created inside the index directory.
const IndexFile = "index.db"

const chunksSchema = `
CREATE TABLE IF NOT EXISTS chunks (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    content TEXT NOT NULL,
    meta TEXT,
    embedding BLOB
);
CREATE INDEX IF NOT EXISTS chunks_source ON chunks(source);
`

// SQLiteStore keeps chunks and their embeddings in a single SQLite file and
// ranks them by brute-force cosine similarity.
type SQLiteStore struct {
	db       *sql.DB
	embedder embeddings.Embedder
	log      *logrus.Entry
}

var _ Store = (*SQLiteStore)(nil)

// IndexExists reports whether a persisted index directory is present.
func IndexExists(indexPath string) bool {
	info, err := os.Stat(indexPath)
	return err == nil && info.IsDir()
}

// OpenSQLite opens (creating if needed) the index under indexPath.
func OpenSQLite(indexPath string, embedder embeddings.Embedder) (*SQLiteStore, error) {
	if err := os.MkdirAll(indexPath, 0o755); err != nil {
		return nil, fmt.Errorf("could not create index directory %s: %w", indexPath, err)
	}
	db, err := sql.Open("sqlite", filepath.Join(indexPath, IndexFile))
	if err != nil {
		return nil, fmt.Errorf("could not open sqlite index: %w", err)
	}
	store, err := NewSQLiteStore(db, embedder)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore wraps an open database and ensures the schema exists.
func NewSQLiteStore(db *sql.DB, embedder embeddings.Embedder) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("vectorstore: db is nil")
	}
	// A single connection; ":memory:" is per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(chunksSchema); err != nil {
		return nil, fmt.Errorf("could not create sqlite schema: %w", err)
	}
	return &SQLiteStore{
		db:       db,
		embedder: embedder,
		log:      logrus.WithField("component", "sqlite-store"),
	}, nil
}

// AddDocuments embeds and inserts docs in one transaction.
func (s *SQLiteStore) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	opts := resolveOptions(options)
	docs = dedupe(ctx, docs, opts)
	if len(docs) == 0 {
		return nil, nil
	}
	embedder, err := pickEmbedder(s.embedder, opts)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.PageContent
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("could not embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks(id, source, content, meta, embedding) VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]string, 0, len(docs))
	for i, d := range docs {
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return nil, fmt.Errorf("could not encode metadata of chunk %d: %w", i, err)
		}
		id := uuid.New().String()
		if _, err := stmt.ExecContext(ctx, id, sourceOf(d), d.PageContent, string(meta), EncodeEmbedding(vectors[i])); err != nil {
			return nil, fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.log.Debugf("Inserted %d chunks", len(ids))
	return ids, nil
}

// SimilaritySearch embeds query and returns the numDocuments most similar
// chunks, best first, with Score set to the cosine similarity.
func (s *SQLiteStore) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	if numDocuments <= 0 {
		return nil, nil
	}
	opts := resolveOptions(options)
	embedder, err := pickEmbedder(s.embedder, opts)
	if err != nil {
		return nil, err
	}
	qvec, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query text: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, content, meta, embedding FROM chunks ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schema.Document
	for rows.Next() {
		var (
			id, content string
			meta        sql.NullString
			blob        []byte
		)
		if err := rows.Scan(&id, &content, &meta, &blob); err != nil {
			return nil, err
		}
		vec, err := DecodeEmbedding(blob)
		if err != nil {
			s.log.Warnf("Skipping chunk %s: %v", id, err)
			continue
		}
		score, err := CosineSimilarity(qvec, vec)
		if err != nil {
			s.log.Warnf("Skipping chunk %s: %v", id, err)
			continue
		}
		if opts.ScoreThreshold > 0 && float32(score) < opts.ScoreThreshold {
			continue
		}
		metadata := map[string]any{}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &metadata); err != nil {
				s.log.Warnf("Could not decode metadata for chunk %s: %v", id, err)
			}
		}
		if !matchesFilters(metadata, opts.Filters) {
			continue
		}
		out = append(out, schema.Document{
			PageContent: content,
			Metadata:    metadata,
			Score:       float32(score),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > numDocuments {
		out = out[:numDocuments]
	}
	return out, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Sources(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source, COUNT(*) FROM chunks GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			src string
			n   int
		)
		if err := rows.Scan(&src, &n); err != nil {
			return nil, err
		}
		out[src] = n
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteBySource(ctx context.Context, source string) error {
	if source == "" {
		return fmt.Errorf("vectorstore: DeleteBySource called with empty source")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, source)
	if err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", source, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.log.Infof("Removed %d chunks of %s", n, source)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
