// Copyright 2025 QueryGate
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import (
	"database/sql"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"querygate/platform/shared/types"
)

// AuditRecord is one append-only entry in the security audit stream.
// Records carry capability outcomes, never raw payloads.
type AuditRecord struct {
	ID          string           `json:"id"`
	Timestamp   time.Time        `json:"timestamp"`
	RequestID   string           `json:"request_id"`
	IdentityID  string           `json:"identity_id"`
	Role        string           `json:"role"`
	Capability  types.Capability `json:"capability,omitempty"`
	Decision    string           `json:"decision,omitempty"`
	StepOutcome string           `json:"step_outcome,omitempty"`
	Detail      string           `json:"detail,omitempty"`
}

// AuditSink accepts audit records without ever blocking the request path.
// When a Postgres URL is configured, records are batched into the
// audit_records table; otherwise they degrade to stdout JSON lines.
// A full queue drops the record rather than stalling a request.
type AuditSink struct {
	db           *sql.DB
	queue        chan *AuditRecord
	wg           sync.WaitGroup
	shutdownOnce sync.Once
	shutdown     chan struct{}
}

const auditQueueDepth = 4096

// NewAuditSink creates the audit sink. An empty databaseURL or an
// unreachable database yields a stdout-only sink, never an error: audit
// degradation is best-effort by contract.
func NewAuditSink(databaseURL string) *AuditSink {
	sink := &AuditSink{
		queue:    make(chan *AuditRecord, auditQueueDepth),
		shutdown: make(chan struct{}),
	}

	if databaseURL != "" {
		db, err := sql.Open("postgres", databaseURL)
		if err != nil {
			log.Printf("[AuditSink] failed to open audit database, falling back to stdout: %v", err)
		} else if err := createAuditTable(db); err != nil {
			log.Printf("[AuditSink] failed to ensure audit table, falling back to stdout: %v", err)
			db.Close()
		} else {
			sink.db = db
		}
	}

	sink.wg.Add(1)
	go sink.drain()

	return sink
}

func createAuditTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_records (
			id TEXT PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			request_id TEXT NOT NULL,
			identity_id TEXT NOT NULL,
			role TEXT NOT NULL,
			capability TEXT,
			decision TEXT,
			step_outcome TEXT,
			detail TEXT
		)`)
	return err
}

// Record enqueues an audit record. Never blocks; a saturated queue drops
// the record with an operational log line.
func (s *AuditSink) Record(rec AuditRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	select {
	case s.queue <- &rec:
	default:
		log.Printf("[AuditSink] queue full, dropping record for request %s", rec.RequestID)
	}
}

// RecordDecision writes an authorization decision entry
func (s *AuditSink) RecordDecision(requestID string, identity types.Identity, capability types.Capability, decision Decision) {
	s.Record(AuditRecord{
		RequestID:  requestID,
		IdentityID: identity.ID,
		Role:       identity.Role,
		Capability: capability,
		Decision:   string(decision),
	})
}

// RecordOutcome writes a step outcome entry
func (s *AuditSink) RecordOutcome(requestID string, identity types.Identity, capability types.Capability, outcome StepStatus, detail string) {
	s.Record(AuditRecord{
		RequestID:   requestID,
		IdentityID:  identity.ID,
		Role:        identity.Role,
		Capability:  capability,
		StepOutcome: string(outcome),
		Detail:      detail,
	})
}

func (s *AuditSink) drain() {
	defer s.wg.Done()

	batch := make([]*AuditRecord, 0, 64)
	flushTicker := time.NewTicker(2 * time.Second)
	defer flushTicker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.write(batch)
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-s.queue:
			batch = append(batch, rec)
			if len(batch) >= 64 {
				flush()
			}
		case <-flushTicker.C:
			flush()
		case <-s.shutdown:
			// Drain whatever is still queued before exiting
			for {
				select {
				case rec := <-s.queue:
					batch = append(batch, rec)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (s *AuditSink) write(batch []*AuditRecord) {
	if s.db == nil {
		for _, rec := range batch {
			line, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			log.Printf("[Audit] %s", line)
		}
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[AuditSink] batch write failed to begin: %v", err)
		return
	}

	stmt, err := tx.Prepare(`
		INSERT INTO audit_records (id, ts, request_id, identity_id, role, capability, decision, step_outcome, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	if err != nil {
		log.Printf("[AuditSink] batch write failed to prepare: %v", err)
		tx.Rollback()
		return
	}
	defer stmt.Close()

	for _, rec := range batch {
		if _, err := stmt.Exec(rec.ID, rec.Timestamp, rec.RequestID, rec.IdentityID,
			rec.Role, string(rec.Capability), rec.Decision, rec.StepOutcome, rec.Detail); err != nil {
			log.Printf("[AuditSink] failed to insert audit record %s: %v", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[AuditSink] batch commit failed: %v", err)
	}
}

// Close flushes queued records and releases the database handle
func (s *AuditSink) Close() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		s.wg.Wait()
		if s.db != nil {
			s.db.Close()
		}
	})
}
