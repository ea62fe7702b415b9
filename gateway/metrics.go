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

package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querygate_requests_total",
			Help: "Total number of query requests processed by the gateway",
		},
		[]string{"status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "querygate_request_duration_milliseconds",
			Help:    "Query request duration in milliseconds",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
		},
		[]string{"status"},
	)
	promStepOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querygate_step_outcomes_total",
			Help: "Terminal plan step outcomes by status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promStepOutcomes)
}

// gatewayMetrics keeps simple in-process counters for the JSON metrics
// endpoint, alongside the Prometheus registry.
type gatewayMetrics struct {
	mu             sync.Mutex
	startTime      time.Time
	totalRequests  int64
	rejectedAuth   int64
	planningErrors int64
	succeeded      int64
}

func newGatewayMetrics() *gatewayMetrics {
	return &gatewayMetrics{startTime: time.Now()}
}

func (m *gatewayMetrics) record(status string, durationMs int64) {
	promRequestsTotal.WithLabelValues(status).Inc()
	promRequestDuration.WithLabelValues(status).Observe(float64(durationMs))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalRequests++
	switch status {
	case "unauthenticated":
		m.rejectedAuth++
	case "planning_error":
		m.planningErrors++
	case "ok":
		m.succeeded++
	}
}

func (m *gatewayMetrics) recordStep(status string) {
	promStepOutcomes.WithLabelValues(status).Inc()
}

// handleMetrics serves the legacy JSON metrics view
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.mu.Lock()
	snapshot := map[string]interface{}{
		"uptime_seconds":  time.Since(s.metrics.startTime).Seconds(),
		"total_requests":  s.metrics.totalRequests,
		"succeeded":       s.metrics.succeeded,
		"unauthenticated": s.metrics.rejectedAuth,
		"planning_errors": s.metrics.planningErrors,
	}
	s.metrics.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		log.Printf("Error encoding metrics response: %v", err)
	}
}
