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
	"context"
	"fmt"
	"sync"
	"time"

	"querygate/platform/shared/logger"
	"querygate/platform/shared/types"
	"querygate/platform/tools"
)

// Dispatcher executes validated plan steps. Steps are resolved into
// dispatch waves (topological batches over the dependency references);
// independent steps within a wave run concurrently under a fixed-size
// worker pool so a single request cannot fan out unbounded load onto
// shared backends.
type Dispatcher struct {
	adapters   map[types.Capability]tools.Adapter
	audit      *AuditSink
	poolSize   int
	maxRetries int
	backoff    time.Duration
	logger     *logger.Logger
}

// NewDispatcher creates a dispatcher over the registered adapters
func NewDispatcher(adapters []tools.Adapter, audit *AuditSink, poolSize, maxRetries int, backoff time.Duration) *Dispatcher {
	byCapability := make(map[types.Capability]tools.Adapter, len(adapters))
	for _, a := range adapters {
		byCapability[a.Capability()] = a
	}

	if poolSize < 1 {
		poolSize = 1
	}

	return &Dispatcher{
		adapters:   byCapability,
		audit:      audit,
		poolSize:   poolSize,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger.New("dispatcher"),
	}
}

// Dispatch runs the allowed steps to completion and merges their
// terminal results into results, which already contains entries for
// steps that were denied or dropped during validation. Dependency
// references are resolved against that same map, so a dependent of a
// denied or failed step resolves to skipped without an adapter call.
func (d *Dispatcher) Dispatch(ctx context.Context, requestID string, identity types.Identity, steps []PlanStep, results map[int]ExecutionResult) {
	waves := resolveWaves(steps)

	d.logger.Info(identity.ID, requestID, "dispatch starting", map[string]interface{}{
		"steps": len(steps),
		"waves": len(waves),
	})

	for waveIdx, wave := range waves {
		// A cancelled request resolves every unstarted step as skipped;
		// committed side effects from earlier waves stand.
		if ctx.Err() != nil {
			for _, w := range waves[waveIdx:] {
				for _, step := range w {
					results[step.Index] = ExecutionResult{
						Index:      step.Index,
						Capability: step.Capability,
						Status:     StatusSkipped,
						SkipReason: SkipCancelled,
					}
					d.audit.RecordOutcome(requestID, identity, step.Capability, StatusSkipped, SkipCancelled)
				}
			}
			return
		}

		d.runWave(ctx, requestID, identity, wave, results)
	}
}

// resolveWaves groups steps into topological batches. Dependency
// references are backward-only (enforced at parse time), so a step's
// wave is one past its dependency's wave.
func resolveWaves(steps []PlanStep) [][]PlanStep {
	waveOf := make(map[int]int, len(steps))
	inPlan := make(map[int]bool, len(steps))
	for _, step := range steps {
		inPlan[step.Index] = true
	}

	maxWave := 0
	for _, step := range steps {
		wave := 0
		if step.DependsOn != nil && inPlan[*step.DependsOn] {
			wave = waveOf[*step.DependsOn] + 1
		}
		waveOf[step.Index] = wave
		if wave > maxWave {
			maxWave = wave
		}
	}

	waves := make([][]PlanStep, maxWave+1)
	for _, step := range steps {
		w := waveOf[step.Index]
		waves[w] = append(waves[w], step)
	}
	return waves
}

func (d *Dispatcher) runWave(ctx context.Context, requestID string, identity types.Identity, wave []PlanStep, results map[int]ExecutionResult) {
	// Resolve dependency outcomes up front. All dependencies completed in
	// an earlier wave, so the results map is stable here; once workers
	// start, only they touch it, under the mutex.
	type launch struct {
		step       PlanStep
		depPayload map[string]interface{}
	}
	var launches []launch

	for _, step := range wave {
		if step.DependsOn != nil {
			dep, ok := results[*step.DependsOn]
			if !ok || !dep.Succeeded() {
				results[step.Index] = ExecutionResult{
					Index:      step.Index,
					Capability: step.Capability,
					Status:     StatusSkipped,
					SkipReason: SkipDependencyFailed,
				}
				d.audit.RecordOutcome(requestID, identity, step.Capability, StatusSkipped, SkipDependencyFailed)
				continue
			}
			launches = append(launches, launch{step: step, depPayload: dep.Payload})
			continue
		}
		launches = append(launches, launch{step: step})
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		pool = make(chan struct{}, d.poolSize)
	)

	for _, l := range launches {
		wg.Add(1)
		go func(l launch) {
			defer wg.Done()

			select {
			case pool <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				results[l.step.Index] = ExecutionResult{
					Index:      l.step.Index,
					Capability: l.step.Capability,
					Status:     StatusSkipped,
					SkipReason: SkipCancelled,
				}
				mu.Unlock()
				d.audit.RecordOutcome(requestID, identity, l.step.Capability, StatusSkipped, SkipCancelled)
				return
			}
			defer func() { <-pool }()

			result := d.invokeStep(ctx, requestID, identity, l.step, l.depPayload)

			mu.Lock()
			results[l.step.Index] = result
			mu.Unlock()

			d.audit.RecordOutcome(requestID, identity, l.step.Capability, result.Status, result.ErrorKind)
		}(l)
	}

	wg.Wait()
}

// invokeStep runs one adapter call with the retry policy: unavailable
// and timeout errors retry up to the configured bound with linear
// backoff, bad-input never retries. The dedupe key is stable across
// attempts so side-effecting adapters commit at most once.
func (d *Dispatcher) invokeStep(ctx context.Context, requestID string, identity types.Identity, step PlanStep, depPayload map[string]interface{}) (result ExecutionResult) {
	adapter, ok := d.adapters[step.Capability]
	if !ok {
		// Capability granted but no adapter registered; configuration gap
		return ExecutionResult{
			Index:      step.Index,
			Capability: step.Capability,
			Status:     StatusError,
			ErrorKind:  string(tools.ErrUnavailable),
			Error:      tools.NewToolError(string(step.Capability), tools.ErrUnavailable, "no adapter registered", nil),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error(identity.ID, requestID, "adapter panicked", map[string]interface{}{
				"adapter": adapter.Name(),
				"panic":   fmt.Sprint(r),
			})
			result = ExecutionResult{
				Index:      step.Index,
				Capability: step.Capability,
				Status:     StatusError,
				ErrorKind:  string(tools.ErrUnavailable),
				Error:      tools.NewToolError(adapter.Name(), tools.ErrUnavailable, "adapter panic", nil),
			}
		}
	}()

	args := step.Args
	if depPayload != nil {
		merged := make(map[string]interface{}, len(args)+1)
		for k, v := range args {
			merged[k] = v
		}
		merged["dependency_output"] = depPayload
		args = merged
	}

	dedupeKey := fmt.Sprintf("%s-step-%d", requestID, step.Index)

	var lastErr *tools.ToolError
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			// Linear backoff, abandoned on cancellation
			select {
			case <-time.After(time.Duration(attempt) * d.backoff):
			case <-ctx.Done():
				return ExecutionResult{
					Index:      step.Index,
					Capability: step.Capability,
					Status:     StatusSkipped,
					SkipReason: SkipCancelled,
				}
			}
			d.logger.Info(identity.ID, requestID, "retrying step", map[string]interface{}{
				"adapter": adapter.Name(),
				"attempt": attempt,
			})
		}

		payload, toolErr := adapter.Invoke(ctx, identity, args, dedupeKey)
		if toolErr == nil {
			return ExecutionResult{
				Index:      step.Index,
				Capability: step.Capability,
				Status:     StatusSuccess,
				Payload:    payload,
			}
		}

		lastErr = toolErr
		if !toolErr.Retryable() {
			break
		}
	}

	return ExecutionResult{
		Index:      step.Index,
		Capability: step.Capability,
		Status:     StatusError,
		ErrorKind:  string(lastErr.Kind),
		Error:      lastErr,
	}
}
