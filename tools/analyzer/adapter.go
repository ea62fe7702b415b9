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

package analyzer

import (
	"context"
	"sort"

	"github.com/montanaflynn/stats"

	"querygate/platform/shared/types"
	"querygate/platform/tools"
)

// Adapter computes descriptive statistics over tabular data. It requires
// the analyze-data capability and runs entirely in process, so it has no
// unavailable or timeout failure modes.
//
// Rows come either from args["rows"] directly or from the prior step's
// payload under args["dependency_output"], which is how an analyze step
// consumes the output of a query step.
type Adapter struct{}

// New creates the analyzer adapter
func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string {
	return "analyzer"
}

func (a *Adapter) Capability() types.Capability {
	return types.CapAnalyzeData
}

// ColumnStats is the per-column analysis result
type ColumnStats struct {
	Count  int     `json:"count"`
	Sum    float64 `json:"sum"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
}

func (a *Adapter) Invoke(ctx context.Context, identity types.Identity, args map[string]interface{}, dedupeKey string) (map[string]interface{}, *tools.ToolError) {
	rows := extractRows(args)
	if len(rows) == 0 {
		return nil, tools.NewToolError(a.Name(), tools.ErrBadInput, "no rows to analyze", nil)
	}

	values := make(map[string][]float64)
	for _, row := range rows {
		for col, raw := range row {
			if value, ok := asFloat(raw); ok {
				values[col] = append(values[col], value)
			}
		}
	}

	if len(values) == 0 {
		return nil, tools.NewToolError(a.Name(), tools.ErrBadInput, "no numeric columns in input", nil)
	}

	columns := make([]string, 0, len(values))
	payload := make(map[string]interface{}, len(values))
	for col, series := range values {
		payload[col] = describeColumn(series)
		columns = append(columns, col)
	}
	sort.Strings(columns)

	return map[string]interface{}{
		"columns":   columns,
		"stats":     payload,
		"row_count": len(rows),
	}, nil
}

// describeColumn summarizes one numeric series. The stats calls cannot
// fail on a non-empty input, so their errors are discarded.
func describeColumn(series []float64) *ColumnStats {
	sum, _ := stats.Sum(series)
	mean, _ := stats.Mean(series)
	median, _ := stats.Median(series)
	min, _ := stats.Min(series)
	max, _ := stats.Max(series)
	stdDev, _ := stats.StandardDeviation(series)

	return &ColumnStats{
		Count:  len(series),
		Sum:    sum,
		Mean:   mean,
		Median: median,
		Min:    min,
		Max:    max,
		StdDev: stdDev,
	}
}

// extractRows digs the row set out of the argument payload. Dependency
// output from sqltool arrives as {"rows": [...]} nested under
// dependency_output.
func extractRows(args map[string]interface{}) []map[string]interface{} {
	candidates := []interface{}{args["rows"]}
	if dep, ok := args["dependency_output"].(map[string]interface{}); ok {
		candidates = append(candidates, dep["rows"])
	}

	for _, c := range candidates {
		switch v := c.(type) {
		case []map[string]interface{}:
			return v
		case []interface{}:
			var rows []map[string]interface{}
			for _, item := range v {
				if row, ok := item.(map[string]interface{}); ok {
					rows = append(rows, row)
				}
			}
			if len(rows) > 0 {
				return rows
			}
		}
	}
	return nil
}

func asFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
