package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"skillforge/internal/logging"
)

// BuildRecord is one synthesis attempt, successful or not.
type BuildRecord struct {
	ID            string
	Specification string
	SkillName     string
	Filename      string
	Fingerprint   string
	Success       bool
	Error         string
	CreatedAt     time.Time
}

// InvocationRecord is one skill execution.
type InvocationRecord struct {
	ID         int64
	TraceID    string
	SkillName  string
	Arguments  map[string]interface{}
	Output     string
	Success    bool
	Error      string
	DurationMs int64
	CreatedAt  time.Time
}

// RecordBuild persists a build record. A missing ID is assigned.
func (s *Store) RecordBuild(rec BuildRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.db.Exec(
		`INSERT INTO build_history (id, specification, skill_name, filename, fingerprint, success, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Specification, rec.SkillName, rec.Filename, rec.Fingerprint, rec.Success, rec.Error,
	)
	if err != nil {
		return fmt.Errorf("record build: %w", err)
	}
	logging.StoreDebug("Recorded build %s skill=%s success=%v", rec.ID, rec.SkillName, rec.Success)
	return nil
}

// RecentBuilds returns the newest build records, most recent first.
func (s *Store) RecentBuilds(limit int) ([]BuildRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, specification, skill_name, filename, fingerprint, success, error_message, created_at
		 FROM build_history ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []BuildRecord
	for rows.Next() {
		var rec BuildRecord
		if err := rows.Scan(&rec.ID, &rec.Specification, &rec.SkillName, &rec.Filename,
			&rec.Fingerprint, &rec.Success, &rec.Error, &rec.CreatedAt); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecordInvocation persists an invocation record.
func (s *Store) RecordInvocation(rec InvocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	argsJSON, _ := json.Marshal(rec.Arguments)
	_, err := s.db.Exec(
		`INSERT INTO invocations (trace_id, skill_name, arguments, output, success, error_message, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.TraceID, rec.SkillName, string(argsJSON), rec.Output, rec.Success, rec.Error, rec.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("record invocation: %w", err)
	}
	return nil
}

// RecentInvocations returns the newest invocation records, most recent first.
func (s *Store) RecentInvocations(limit int) ([]InvocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, trace_id, skill_name, arguments, output, success, error_message, duration_ms, created_at
		 FROM invocations ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []InvocationRecord
	for rows.Next() {
		var rec InvocationRecord
		var argsJSON string
		if err := rows.Scan(&rec.ID, &rec.TraceID, &rec.SkillName, &argsJSON, &rec.Output,
			&rec.Success, &rec.Error, &rec.DurationMs, &rec.CreatedAt); err != nil {
			continue
		}
		if argsJSON != "" {
			json.Unmarshal([]byte(argsJSON), &rec.Arguments)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
