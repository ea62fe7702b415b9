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

package logger

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

// Logger provides structured logging tagged with the emitting component.
// Every entry carries the identity and request being served so the
// per-request flow can be reconstructed from interleaved output.
type Logger struct {
	Component string
	Container string
}

// LogEntry is the JSON shape written to stdout for each log call
type LogEntry struct {
	Timestamp  string                 `json:"timestamp"`
	Level      LogLevel               `json:"level"`
	Component  string                 `json:"component"`
	Container  string                 `json:"container"`
	IdentityID string                 `json:"identity_id,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	Message    string                 `json:"message"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// New creates a Logger for the specified component
func New(component string) *Logger {
	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	return &Logger{
		Component: component,
		Container: container,
	}
}

// Log builds a structured entry and writes it to stdout
func (l *Logger) Log(level LogLevel, identityID, requestID, message string, fields map[string]interface{}) {
	entry := LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Level:      level,
		Component:  l.Component,
		Container:  l.Container,
		IdentityID: identityID,
		RequestID:  requestID,
		Message:    message,
		Fields:     fields,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		// Fall back to plain text if marshaling fails
		log.Printf("ERROR: failed to marshal log entry: %v", err)
		return
	}

	log.Println(string(jsonBytes))
}

// Info logs an informational message
func (l *Logger) Info(identityID, requestID, message string, fields map[string]interface{}) {
	l.Log(INFO, identityID, requestID, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(identityID, requestID, message string, fields map[string]interface{}) {
	l.Log(WARN, identityID, requestID, message, fields)
}

// Error logs an error message
func (l *Logger) Error(identityID, requestID, message string, fields map[string]interface{}) {
	l.Log(ERROR, identityID, requestID, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(identityID, requestID, message string, fields map[string]interface{}) {
	l.Log(DEBUG, identityID, requestID, message, fields)
}

// InfoWithDuration logs an info message carrying an operation duration
func (l *Logger) InfoWithDuration(identityID, requestID, message string, durationMS float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = durationMS
	l.Log(INFO, identityID, requestID, message, fields)
}
