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

package docsearch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"querygate/platform/shared/types"
	"querygate/platform/tools"
)

const defaultSearchLimit = 10

// Adapter searches unstructured documents. It requires the
// search-documents capability. When a MongoDB URI is configured the
// search runs against a text index on the documents collection;
// otherwise a built-in corpus serves results so the system remains
// usable without a document store.
type Adapter struct {
	collection *mongo.Collection
	corpus     []Document
	limit      int
}

// Document is one searchable entry
type Document struct {
	Title    string `bson:"title" json:"title"`
	Body     string `bson:"body" json:"body"`
	TenantID string `bson:"tenant_id" json:"-"`
}

// New connects to MongoDB when uri is non-empty; an empty uri yields the
// in-memory corpus adapter.
func New(ctx context.Context, uri string) (*Adapter, error) {
	if uri == "" {
		return &Adapter{corpus: seedCorpus(), limit: defaultSearchLimit}, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to document store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("document store unreachable: %w", err)
	}

	log.Printf("[docsearch] connected to document store")
	return &Adapter{
		collection: client.Database("querygate").Collection("documents"),
		limit:      defaultSearchLimit,
	}, nil
}

// NewInMemory builds an adapter over an explicit corpus, used by tests
func NewInMemory(corpus []Document) *Adapter {
	return &Adapter{corpus: corpus, limit: defaultSearchLimit}
}

func (a *Adapter) Name() string {
	return "docsearch"
}

func (a *Adapter) Capability() types.Capability {
	return types.CapSearchDocuments
}

// Invoke searches for args["query"]. Results are scoped to the
// identity's tenant when documents carry one.
func (a *Adapter) Invoke(ctx context.Context, identity types.Identity, args map[string]interface{}, dedupeKey string) (map[string]interface{}, *tools.ToolError) {
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, tools.NewToolError(a.Name(), tools.ErrBadInput, "missing query argument", nil)
	}

	if a.collection != nil {
		return a.searchMongo(ctx, identity, query)
	}
	return a.searchCorpus(identity, query), nil
}

func (a *Adapter) searchMongo(ctx context.Context, identity types.Identity, query string) (map[string]interface{}, *tools.ToolError) {
	filter := bson.M{"$text": bson.M{"$search": query}}
	if identity.TenantID != "" {
		filter = bson.M{
			"$and": bson.A{
				bson.M{"$text": bson.M{"$search": query}},
				bson.M{"tenant_id": bson.M{"$in": bson.A{identity.TenantID, ""}}},
			},
		}
	}

	cursor, err := a.collection.Find(ctx, filter, options.Find().SetLimit(int64(a.limit)))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, tools.NewToolError(a.Name(), tools.ErrTimeout, "search timed out", err)
		}
		return nil, tools.NewToolError(a.Name(), tools.ErrUnavailable, "document store query failed", err)
	}
	defer cursor.Close(ctx)

	var docs []Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, tools.NewToolError(a.Name(), tools.ErrUnavailable, "failed to read search results", err)
	}

	return resultPayload(docs, "document_store"), nil
}

func (a *Adapter) searchCorpus(identity types.Identity, query string) map[string]interface{} {
	terms := strings.Fields(strings.ToLower(query))

	var matches []Document
	for _, doc := range a.corpus {
		if doc.TenantID != "" && identity.TenantID != "" && doc.TenantID != identity.TenantID {
			continue
		}
		haystack := strings.ToLower(doc.Title + " " + doc.Body)
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				matches = append(matches, doc)
				break
			}
		}
		if len(matches) >= a.limit {
			break
		}
	}

	return resultPayload(matches, "builtin_corpus")
}

func resultPayload(docs []Document, source string) map[string]interface{} {
	results := make([]map[string]interface{}, len(docs))
	for i, doc := range docs {
		results[i] = map[string]interface{}{
			"title":   doc.Title,
			"snippet": snippet(doc.Body),
		}
	}
	return map[string]interface{}{
		"results": results,
		"count":   len(results),
		"source":  source,
	}
}

func snippet(body string) string {
	if len(body) <= 200 {
		return body
	}
	return body[:200] + "..."
}

func seedCorpus() []Document {
	return []Document{
		{Title: "Company Handbook - Employee Benefits", Body: "Full-time employees are eligible for health coverage, retirement matching and an annual learning stipend."},
		{Title: "HR Policy - Remote Work Guidelines", Body: "Employees may work remotely up to three days per week with manager approval. Core collaboration hours are 10:00 to 15:00."},
		{Title: "Q3 Financial Report - Executive Summary", Body: "Revenue grew 15% quarter over quarter driven by the enterprise segment. Operating costs held flat."},
		{Title: "Security Policy - Data Classification", Body: "Customer data is classified as confidential. Access requires a business need and an approved role."},
	}
}
