// Package logging provides structured audit logging as JSON lines.
// Audit events capture the lifecycle of a session: turns, routing
// decisions, model calls, builds, and skill executions. One event per
// line so the trail can be replayed or grepped after the fact.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Session events
	AuditSessionStart AuditEventType = "session_start"
	AuditSessionEnd   AuditEventType = "session_end"
	AuditTurnStart    AuditEventType = "turn_start"
	AuditTurnEnd      AuditEventType = "turn_end"

	// Routing events
	AuditRouteDecision  AuditEventType = "route_decision"
	AuditRouteGuardrail AuditEventType = "route_guardrail"
	AuditRouteFallback  AuditEventType = "route_fallback"

	// Model API events
	AuditLLMRequest  AuditEventType = "llm_request"
	AuditLLMResponse AuditEventType = "llm_response"
	AuditLLMError    AuditEventType = "llm_error"
	AuditEmbedCall   AuditEventType = "embed_call"
	AuditEmbedError  AuditEventType = "embed_error"

	// Skill lifecycle events
	AuditSkillInvoke   AuditEventType = "skill_invoke"
	AuditSkillComplete AuditEventType = "skill_complete"
	AuditSkillError    AuditEventType = "skill_error"
	AuditSkillReload   AuditEventType = "skill_reload"

	// Builder events
	AuditBuildStart    AuditEventType = "build_start"
	AuditBuildComplete AuditEventType = "build_complete"
	AuditBuildError    AuditEventType = "build_error"

	// Registry events
	AuditRefreshComplete AuditEventType = "refresh_complete"
	AuditSkillRegistered AuditEventType = "skill_registered"

	// Performance
	AuditPerfMetric AuditEventType = "perf_metric"
	AuditPerfSlow   AuditEventType = "perf_slow"

	// Error events
	AuditErrorGeneric  AuditEventType = "error_generic"
	AuditErrorCritical AuditEventType = "error_critical"
)

// =============================================================================
// AUDIT EVENT STRUCTURE
// =============================================================================

// AuditEvent represents a structured audit log entry.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"`      // Unix milliseconds
	EventType  AuditEventType         `json:"event"`   // Event type
	Category   string                 `json:"cat"`     // Log category
	SessionID  string                 `json:"session"` // Session correlation
	TraceID    string                 `json:"trace"`   // Per-turn correlation
	Target     string                 `json:"target"`  // Target of operation (skill, model, file)
	Action     string                 `json:"action"`  // Action being performed
	Success    bool                   `json:"success"` // Operation succeeded
	DurationMs int64                  `json:"dur_ms"`  // Duration in milliseconds
	Error      string                 `json:"error"`   // Error message if failed
	Message    string                 `json:"msg"`     // Human-readable message
	Fields     map[string]interface{} `json:"fields"`  // Additional structured fields
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger handles structured audit logging
type AuditLogger struct {
	sessionID string
	traceID   string
	category  Category
}

// InitAudit initializes the audit logging system
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil // Already initialized
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file

	// Write header
	header := fmt.Sprintf("# Audit log started at %s\n# Format: one JSON event per line\n", time.Now().Format(time.RFC3339))
	auditFile.WriteString(header)

	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger
func Audit() *AuditLogger {
	if auditLogger == nil {
		auditLogger = &AuditLogger{}
	}
	return auditLogger
}

// AuditWithSession creates an audit logger scoped to a session
func AuditWithSession(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID}
}

// AuditWithTrace creates an audit logger scoped to a single turn
func AuditWithTrace(sessionID, traceID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID, traceID: traceID}
}

// =============================================================================
// AUDIT LOGGING METHODS
// =============================================================================

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() || auditFile == nil {
		return
	}

	// Fill in defaults
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.SessionID == "" && a.sessionID != "" {
		event.SessionID = a.sessionID
	}
	if event.TraceID == "" && a.traceID != "" {
		event.TraceID = a.traceID
	}
	if event.Category == "" && a.category != "" {
		event.Category = string(a.category)
	}
	if event.Fields == nil {
		event.Fields = make(map[string]interface{})
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	// Write JSON line
	data, err := json.Marshal(event)
	if err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

// =============================================================================
// CONVENIENCE METHODS FOR COMMON EVENTS
// =============================================================================

// SessionStart logs session start
func (a *AuditLogger) SessionStart(sessionID string) {
	a.Log(AuditEvent{
		EventType: AuditSessionStart,
		SessionID: sessionID,
		Success:   true,
		Message:   fmt.Sprintf("Session started: %s", sessionID),
	})
}

// SessionEnd logs session end
func (a *AuditLogger) SessionEnd(sessionID string, turnCount int, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditSessionEnd,
		SessionID:  sessionID,
		Success:    true,
		DurationMs: durationMs,
		Fields:     map[string]interface{}{"turn_count": turnCount},
		Message:    fmt.Sprintf("Session ended: %s (%d turns, %dms)", sessionID, turnCount, durationMs),
	})
}

// TurnStart logs turn start
func (a *AuditLogger) TurnStart(traceID string, turnNum int, inputLen int) {
	a.Log(AuditEvent{
		EventType: AuditTurnStart,
		TraceID:   traceID,
		Success:   true,
		Fields:    map[string]interface{}{"turn": turnNum, "input_len": inputLen},
		Message:   fmt.Sprintf("Turn %d started (%d chars)", turnNum, inputLen),
	})
}

// TurnEnd logs turn end
func (a *AuditLogger) TurnEnd(traceID string, turnNum int, durationMs int64, success bool) {
	a.Log(AuditEvent{
		EventType:  AuditTurnEnd,
		TraceID:    traceID,
		Success:    success,
		DurationMs: durationMs,
		Fields:     map[string]interface{}{"turn": turnNum},
		Message:    fmt.Sprintf("Turn %d ended (%dms, success=%v)", turnNum, durationMs, success),
	})
}

// RouteDecision logs the outcome of a routing pass
func (a *AuditLogger) RouteDecision(traceID, action, tool string, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditRouteDecision,
		TraceID:    traceID,
		Action:     action,
		Target:     tool,
		Success:    true,
		DurationMs: durationMs,
		Message:    fmt.Sprintf("Route: action=%s tool=%s (%dms)", action, tool, durationMs),
	})
}

// Guardrail logs a use_tool decision rewritten to build because the
// named tool does not exist.
func (a *AuditLogger) Guardrail(traceID, tool string) {
	a.Log(AuditEvent{
		EventType: AuditRouteGuardrail,
		TraceID:   traceID,
		Target:    tool,
		Success:   true,
		Message:   fmt.Sprintf("Guardrail: unknown tool %q rewritten to build", tool),
	})
}

// RouteFallback logs a routing pass that fell back to chat
func (a *AuditLogger) RouteFallback(traceID, reason string) {
	a.Log(AuditEvent{
		EventType: AuditRouteFallback,
		TraceID:   traceID,
		Success:   false,
		Error:     reason,
		Message:   fmt.Sprintf("Route fallback to chat: %s", reason),
	})
}

// LLMCall logs a reasoning model API call
func (a *AuditLogger) LLMCall(model string, durationMs int64, success bool, errMsg string) {
	eventType := AuditLLMResponse
	if !success {
		eventType = AuditLLMError
	}
	a.Log(AuditEvent{
		EventType:  eventType,
		Target:     model,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Message:    fmt.Sprintf("LLM call: %s (%dms, success=%v)", model, durationMs, success),
	})
}

// EmbedCall logs an embedding API call
func (a *AuditLogger) EmbedCall(model string, items int, durationMs int64, success bool, errMsg string) {
	eventType := AuditEmbedCall
	if !success {
		eventType = AuditEmbedError
	}
	a.Log(AuditEvent{
		EventType:  eventType,
		Target:     model,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Fields:     map[string]interface{}{"items": items},
		Message:    fmt.Sprintf("Embed call: %s x%d (%dms, success=%v)", model, items, durationMs, success),
	})
}

// SkillInvoke logs the start of a skill execution
func (a *AuditLogger) SkillInvoke(traceID, name string) {
	a.Log(AuditEvent{
		EventType: AuditSkillInvoke,
		TraceID:   traceID,
		Target:    name,
		Success:   true,
		Message:   fmt.Sprintf("Skill invoke: %s", name),
	})
}

// SkillComplete logs the end of a skill execution
func (a *AuditLogger) SkillComplete(traceID, name string, durationMs int64, success bool, errMsg string) {
	eventType := AuditSkillComplete
	if !success {
		eventType = AuditSkillError
	}
	a.Log(AuditEvent{
		EventType:  eventType,
		TraceID:    traceID,
		Target:     name,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Message:    fmt.Sprintf("Skill %s: success=%v (%dms)", name, success, durationMs),
	})
}

// SkillReload logs a skill being recompiled after a source change
func (a *AuditLogger) SkillReload(name, fingerprint string) {
	a.Log(AuditEvent{
		EventType: AuditSkillReload,
		Target:    name,
		Success:   true,
		Fields:    map[string]interface{}{"fingerprint": fingerprint},
		Message:   fmt.Sprintf("Skill reloaded: %s (%s)", name, fingerprint),
	})
}

// BuildEvent logs builder lifecycle events
func (a *AuditLogger) BuildEvent(eventType AuditEventType, traceID, skillName string, durationMs int64, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType:  eventType,
		TraceID:    traceID,
		Target:     skillName,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Message:    fmt.Sprintf("Build %s: %s success=%v (%dms)", eventType, skillName, success, durationMs),
	})
}

// RefreshComplete logs a registry refresh
func (a *AuditLogger) RefreshComplete(count int, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditRefreshComplete,
		Success:    true,
		DurationMs: durationMs,
		Fields:     map[string]interface{}{"skill_count": count},
		Message:    fmt.Sprintf("Refresh complete: %d skills (%dms)", count, durationMs),
	})
}

// SkillRegistered logs an incremental skill registration
func (a *AuditLogger) SkillRegistered(name, path string) {
	a.Log(AuditEvent{
		EventType: AuditSkillRegistered,
		Target:    name,
		Success:   true,
		Fields:    map[string]interface{}{"path": path},
		Message:   fmt.Sprintf("Skill registered: %s (%s)", name, path),
	})
}

// PerfMetric logs a performance metric
func (a *AuditLogger) PerfMetric(operation string, durationMs int64, threshold int64) {
	eventType := AuditPerfMetric
	success := true
	if threshold > 0 && durationMs > threshold {
		eventType = AuditPerfSlow
		success = false
	}
	fields := map[string]interface{}{}
	if threshold > 0 {
		fields["threshold_ms"] = threshold
	}
	a.Log(AuditEvent{
		EventType:  eventType,
		Action:     operation,
		DurationMs: durationMs,
		Success:    success,
		Fields:     fields,
		Message:    fmt.Sprintf("Perf: %s took %dms (threshold=%dms)", operation, durationMs, threshold),
	})
}

// Error logs an error event
func (a *AuditLogger) Error(category string, err error, critical bool) {
	eventType := AuditErrorGeneric
	if critical {
		eventType = AuditErrorCritical
	}
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	a.Log(AuditEvent{
		EventType: eventType,
		Category:  category,
		Success:   false,
		Error:     errMsg,
		Message:   fmt.Sprintf("Error in %s: %s (critical=%v)", category, errMsg, critical),
	})
}
