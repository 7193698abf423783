package store

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"skillforge/internal/embedding"
)

var _ embedding.Cache = (*Store)(nil)

// GetEmbedding returns the cached vector for (model, textHash), or (nil, nil)
// on a miss.
func (s *Store) GetEmbedding(model, textHash string) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob []byte
	err := s.db.QueryRow(
		"SELECT vector FROM embedding_cache WHERE model = ? AND text_hash = ?",
		model, textHash,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("embedding lookup: %w", err)
	}
	return decodeVector(blob)
}

// PutEmbedding stores or replaces the cached vector for (model, textHash).
func (s *Store) PutEmbedding(model, textHash string, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO embedding_cache (model, text_hash, vector) VALUES (?, ?, ?)
		 ON CONFLICT(model, text_hash) DO UPDATE SET vector = excluded.vector`,
		model, textHash, encodeVector(vector),
	)
	if err != nil {
		return fmt.Errorf("embedding store: %w", err)
	}
	return nil
}

// encodeVector packs a float32 slice little-endian, 4 bytes per element.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
