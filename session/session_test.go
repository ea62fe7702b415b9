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

package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := NewManagerWithClient(client)
	t.Cleanup(func() { manager.Close() })
	return manager, mr
}

func TestAppendAndHistory(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, manager.Append(ctx, "u-1001", Message{Role: "user", Content: "find the handbook"}))
	require.NoError(t, manager.Append(ctx, "u-1001", Message{Role: "assistant", Content: "Here is the handbook."}))

	history, err := manager.History(ctx, "u-1001")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "find the handbook", history[0].Content)
	assert.Equal(t, "assistant", history[1].Role)
	assert.False(t, history[0].Timestamp.IsZero())
}

func TestHistory_WindowKeepsMostRecent(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		require.NoError(t, manager.Append(ctx, "u-1001", Message{
			Role:    "user",
			Content: fmt.Sprintf("turn %d", i),
		}))
	}

	history, err := manager.History(ctx, "u-1001")
	require.NoError(t, err)
	require.Len(t, history, 10)
	assert.Equal(t, "turn 5", history[0].Content)
	assert.Equal(t, "turn 14", history[9].Content)
}

func TestHistory_IsolatedPerIdentity(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, manager.Append(ctx, "u-1001", Message{Role: "user", Content: "admin question"}))
	require.NoError(t, manager.Append(ctx, "u-1004", Message{Role: "user", Content: "viewer question"}))

	history, err := manager.History(ctx, "u-1004")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "viewer question", history[0].Content)
}

func TestSessionExpiry(t *testing.T) {
	manager, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, manager.Append(ctx, "u-1001", Message{Role: "user", Content: "hello"}))
	assert.True(t, mr.TTL("session:u-1001") > 0, "session key must carry a TTL")

	mr.FastForward(2 * time.Hour)
	history, err := manager.History(ctx, "u-1001")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestClear(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, manager.Append(ctx, "u-1001", Message{Role: "user", Content: "hello"}))
	require.NoError(t, manager.Clear(ctx, "u-1001"))

	history, err := manager.History(ctx, "u-1001")
	require.NoError(t, err)
	assert.Empty(t, history)
}
