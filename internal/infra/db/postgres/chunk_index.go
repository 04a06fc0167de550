package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pgvector/pgvector-go"

	"scalable-rag-engine/internal/domain"
	"scalable-rag-engine/internal/domain/model"
	"scalable-rag-engine/internal/domain/ports/adapter"
	"scalable-rag-engine/internal/domain/ports/repository"
)

var _ adapter.IndexStore = (*ChunkIndex)(nil)

// embedBatchSize caps texts per embedding request.
const embedBatchSize = 64

// ChunkIndex stores chunk text with pgvector embeddings and answers
// nearest-neighbour queries by cosine distance.
type ChunkIndex struct {
	pool     *pgxpool.Pool
	tm       repository.TransactionManager
	embedder adapter.Embedder
}

func NewChunkIndex(pool *pgxpool.Pool, tm repository.TransactionManager, embedder adapter.Embedder) *ChunkIndex {
	return &ChunkIndex{pool: pool, tm: tm, embedder: embedder}
}

// Upsert embeds texts and writes them in one transaction. Existing rows with
// the same id are overwritten.
func (c *ChunkIndex) Upsert(ctx context.Context, ids []string, texts []string, metadatas []map[string]string) error {
	if len(ids) != len(texts) || len(ids) != len(metadatas) {
		return &domain.IndexError{Op: "upsert", Err: fmt.Errorf("%w: %d ids, %d texts, %d metadatas",
			domain.ErrInvalidArgument, len(ids), len(texts), len(metadatas))}
	}
	if len(ids) == 0 {
		return nil
	}

	vectors, err := c.embedAll(ctx, texts)
	if err != nil {
		return &domain.IndexError{Op: "upsert", Err: err}
	}

	const q = `
INSERT INTO chunks (id, source_url, text, metadata, embedding, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (id) DO UPDATE SET
  source_url = EXCLUDED.source_url,
  text = EXCLUDED.text,
  metadata = EXCLUDED.metadata,
  embedding = EXCLUDED.embedding,
  updated_at = EXCLUDED.updated_at;`

	err = c.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ex, err := getExecutor(c.pool, tx)
		if err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for i := range ids {
			meta, err := json.Marshal(metadatas[i])
			if err != nil {
				return fmt.Errorf("encode metadata for %s: %w", ids[i], err)
			}
			batch.Queue(q, ids[i], metadatas[i][model.MetaSourceURL], texts[i], string(meta), pgvector.NewVector(vectors[i]))
		}
		br := ex.SendBatch(ctx, batch)
		for i := range ids {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("upsert chunk %s: %w", ids[i], err)
			}
		}
		return br.Close()
	})
	if err != nil {
		return &domain.IndexError{Op: "upsert", Err: err}
	}
	return nil
}

func (c *ChunkIndex) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := c.embedder.EmbedDocuments(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed documents: %w", err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// Query returns up to k documents closest to text.
func (c *ChunkIndex) Query(ctx context.Context, text string, k int) (adapter.QueryResult, error) {
	if k <= 0 {
		return adapter.QueryResult{}, nil
	}
	vec, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return adapter.QueryResult{}, &domain.IndexError{Op: "query", Err: fmt.Errorf("embed query: %w", err)}
	}

	const q = `
SELECT text, metadata
FROM chunks
ORDER BY embedding <=> $1
LIMIT $2;`

	rows, err := c.pool.Query(ctx, q, pgvector.NewVector(vec), k)
	if err != nil {
		return adapter.QueryResult{}, &domain.IndexError{Op: "query", Err: err}
	}
	defer rows.Close()

	var res adapter.QueryResult
	for rows.Next() {
		var (
			doc  string
			meta []byte
		)
		if err := rows.Scan(&doc, &meta); err != nil {
			return adapter.QueryResult{}, &domain.IndexError{Op: "query", Err: err}
		}
		m := map[string]string{}
		if err := json.Unmarshal(meta, &m); err != nil {
			return adapter.QueryResult{}, &domain.IndexError{Op: "query", Err: fmt.Errorf("decode metadata: %w", err)}
		}
		res.Documents = append(res.Documents, doc)
		res.Metadatas = append(res.Metadatas, m)
	}
	if err := rows.Err(); err != nil {
		return adapter.QueryResult{}, &domain.IndexError{Op: "query", Err: err}
	}
	return res, nil
}
