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
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	defaultTTL    = time.Hour
	historyWindow = 10
	keyPrefix     = "session:"
)

// Message is one conversation turn
type Message struct {
	Role      string    `json:"role"` // user or assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Manager keeps per-identity conversation history in Redis. Sessions
// expire after an hour of inactivity; every read refreshes the TTL.
// Session state is conversational context only; it never carries
// authorization data.
type Manager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewManager connects to Redis at addr
func NewManager(addr, password string) (*Manager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Manager{client: client, ttl: defaultTTL}, nil
}

// NewManagerWithClient wraps an existing client, used by tests
func NewManagerWithClient(client *redis.Client) *Manager {
	return &Manager{client: client, ttl: defaultTTL}
}

func sessionKey(identityID string) string {
	return keyPrefix + identityID
}

// Append records a conversation turn and refreshes the session TTL
func (m *Manager) Append(ctx context.Context, identityID string, msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	key := sessionKey(identityID)
	pipe := m.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append session message: %w", err)
	}
	return nil
}

// History returns the most recent conversation turns, oldest first,
// refreshing the session TTL.
func (m *Manager) History(ctx context.Context, identityID string) ([]Message, error) {
	key := sessionKey(identityID)

	raw, err := m.client.LRange(ctx, key, int64(-historyWindow), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session history: %w", err)
	}

	if len(raw) > 0 {
		m.client.Expire(ctx, key, m.ttl)
	}

	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Clear removes the session for an identity
func (m *Manager) Clear(ctx context.Context, identityID string) error {
	return m.client.Del(ctx, sessionKey(identityID)).Err()
}

// Close releases the Redis connection
func (m *Manager) Close() error {
	return m.client.Close()
}
