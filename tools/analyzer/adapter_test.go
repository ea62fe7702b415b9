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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querygate/platform/shared/types"
	"querygate/platform/tools"
)

func TestInvoke_ComputesColumnStats(t *testing.T) {
	adapter := New()

	args := map[string]interface{}{
		"rows": []map[string]interface{}{
			{"amount": 10.0, "region": "east"},
			{"amount": 30.0, "region": "west"},
			{"amount": 20.0, "region": "east"},
		},
	}
	payload, toolErr := adapter.Invoke(context.Background(), types.Identity{ID: "u-1"}, args, "k")
	require.Nil(t, toolErr)

	assert.Equal(t, []string{"amount"}, payload["columns"])
	assert.Equal(t, 3, payload["row_count"])

	stats := payload["stats"].(map[string]interface{})
	amount := stats["amount"].(*ColumnStats)
	assert.Equal(t, 3, amount.Count)
	assert.Equal(t, 60.0, amount.Sum)
	assert.Equal(t, 20.0, amount.Mean)
	assert.Equal(t, 20.0, amount.Median)
	assert.Equal(t, 10.0, amount.Min)
	assert.Equal(t, 30.0, amount.Max)
	assert.InDelta(t, 8.1650, amount.StdDev, 0.0001)
}

func TestInvoke_ReadsDependencyOutput(t *testing.T) {
	adapter := New()

	// The shape sqltool output takes when it flows in from a prior step
	args := map[string]interface{}{
		"dependency_output": map[string]interface{}{
			"rows": []interface{}{
				map[string]interface{}{"total": 5},
				map[string]interface{}{"total": 15},
			},
			"count": 2,
		},
	}
	payload, toolErr := adapter.Invoke(context.Background(), types.Identity{ID: "u-1"}, args, "k")
	require.Nil(t, toolErr)

	assert.Equal(t, 2, payload["row_count"])
	stats := payload["stats"].(map[string]interface{})
	total := stats["total"].(*ColumnStats)
	assert.Equal(t, 10.0, total.Mean)
}

func TestInvoke_BadInput(t *testing.T) {
	adapter := New()

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"no rows", map[string]interface{}{}},
		{"empty rows", map[string]interface{}{"rows": []map[string]interface{}{}}},
		{"no numeric columns", map[string]interface{}{
			"rows": []map[string]interface{}{{"name": "alice"}, {"name": "bob"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, toolErr := adapter.Invoke(context.Background(), types.Identity{ID: "u-1"}, tt.args, "k")
			require.NotNil(t, toolErr)
			assert.Equal(t, tools.ErrBadInput, toolErr.Kind)
		})
	}
}
