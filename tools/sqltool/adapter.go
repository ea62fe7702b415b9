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

package sqltool

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"querygate/platform/shared/types"
	"querygate/platform/tools"
)

const defaultRowLimit = 100

// Adapter executes read-only SQL against the structured-data backend.
// It requires the query-structured-data capability. Postgres and MySQL
// are supported via driver selection at construction.
type Adapter struct {
	db       *sql.DB
	driver   string
	rowLimit int
}

// New opens the structured-data backend with the given driver
// ("postgres" or "mysql") and DSN.
func New(driver, dsn string) (*Adapter, error) {
	if driver != "postgres" && driver != "mysql" {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", driver, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Adapter{db: db, driver: driver, rowLimit: defaultRowLimit}, nil
}

// NewWithDB wraps an existing handle, used by tests
func NewWithDB(db *sql.DB, driver string) *Adapter {
	return &Adapter{db: db, driver: driver, rowLimit: defaultRowLimit}
}

func (a *Adapter) Name() string {
	return "sqltool"
}

func (a *Adapter) Capability() types.Capability {
	return types.CapQueryStructuredData
}

// Invoke runs args["statement"] and returns the rows as maps. Only
// single SELECT statements are accepted; anything else is bad input.
// The identity is logged for row-level attribution; capability-level
// authorization already happened at the gatekeeper.
func (a *Adapter) Invoke(ctx context.Context, identity types.Identity, args map[string]interface{}, dedupeKey string) (map[string]interface{}, *tools.ToolError) {
	statement, ok := args["statement"].(string)
	if !ok || strings.TrimSpace(statement) == "" {
		return nil, tools.NewToolError(a.Name(), tools.ErrBadInput, "missing statement argument", nil)
	}

	if err := validateReadOnly(statement); err != nil {
		return nil, tools.NewToolError(a.Name(), tools.ErrBadInput, err.Error(), nil)
	}

	limit := a.rowLimit
	if l, ok := args["limit"].(float64); ok && int(l) > 0 && int(l) < a.rowLimit {
		limit = int(l)
	}

	log.Printf("[sqltool] identity=%s tenant=%s executing query", identity.ID, identity.TenantID)

	rows, err := a.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, a.classify(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, a.classify(err)
	}

	var resultRows []map[string]interface{}
	for rows.Next() {
		if len(resultRows) >= limit {
			break
		}

		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, a.classify(err)
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, a.classify(err)
	}

	return map[string]interface{}{
		"rows":   resultRows,
		"count":  len(resultRows),
		"source": a.driver,
	}, nil
}

func (a *Adapter) classify(err error) *tools.ToolError {
	if err == context.DeadlineExceeded || strings.Contains(err.Error(), "deadline exceeded") {
		return tools.NewToolError(a.Name(), tools.ErrTimeout, "query timed out", err)
	}
	return tools.NewToolError(a.Name(), tools.ErrUnavailable, "backend query failed", err)
}

// validateReadOnly rejects anything that is not a single SELECT or WITH
// statement. The planner is untrusted; so is the statement it proposed.
func validateReadOnly(statement string) error {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(statement), ";"))
	upper := strings.ToUpper(trimmed)

	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("only SELECT statements are permitted")
	}
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("multiple statements are not permitted")
	}

	for _, keyword := range []string{"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "TRUNCATE", "GRANT", "CREATE"} {
		if strings.Contains(upper, keyword) {
			return fmt.Errorf("statement contains forbidden keyword %s", keyword)
		}
	}
	return nil
}

// Close releases the backend handle
func (a *Adapter) Close() error {
	return a.db.Close()
}
