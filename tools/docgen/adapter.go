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

package docgen

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"querygate/platform/shared/types"
	"querygate/platform/tools"
)

// Adapter creates document records. It requires the generate-document
// capability and is the one side-effecting adapter in the default set,
// so it keeps a dedupe ledger: a retried invocation with the same dedupe
// key returns the already-committed record instead of creating a second
// one.
type Adapter struct {
	mu     sync.Mutex
	docs   map[string]Record
	ledger map[string]string // dedupe key → committed document ID
}

// Record is one created document
type Record struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedBy string    `json:"created_by"`
	TenantID  string    `json:"tenant_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// New creates the document generator
func New() *Adapter {
	return &Adapter{
		docs:   make(map[string]Record),
		ledger: make(map[string]string),
	}
}

func (a *Adapter) Name() string {
	return "docgen"
}

func (a *Adapter) Capability() types.Capability {
	return types.CapGenerateDocument
}

func (a *Adapter) Invoke(ctx context.Context, identity types.Identity, args map[string]interface{}, dedupeKey string) (map[string]interface{}, *tools.ToolError) {
	title, _ := args["title"].(string)
	if strings.TrimSpace(title) == "" {
		return nil, tools.NewToolError(a.Name(), tools.ErrBadInput, "missing title argument", nil)
	}
	content, _ := args["content"].(string)

	a.mu.Lock()
	defer a.mu.Unlock()

	// Retry after a timeout may arrive after the original call already
	// committed; the ledger makes that retry observationally identical.
	if docID, seen := a.ledger[dedupeKey]; seen {
		return a.payload(a.docs[docID], true), nil
	}

	record := Record{
		ID:        "doc_" + uuid.NewString(),
		Title:     title,
		Content:   content,
		CreatedBy: identity.ID,
		TenantID:  identity.TenantID,
		CreatedAt: time.Now().UTC(),
	}

	a.docs[record.ID] = record
	if dedupeKey != "" {
		a.ledger[dedupeKey] = record.ID
	}

	return a.payload(record, false), nil
}

func (a *Adapter) payload(record Record, deduplicated bool) map[string]interface{} {
	return map[string]interface{}{
		"status":       "created",
		"id":           record.ID,
		"title":        record.Title,
		"created_at":   record.CreatedAt.Format(time.RFC3339),
		"deduplicated": deduplicated,
	}
}

// Get returns a created record by ID, used for verification
func (a *Adapter) Get(id string) (Record, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	record, ok := a.docs[id]
	return record, ok
}

// Count returns how many documents have been committed
func (a *Adapter) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.docs)
}
