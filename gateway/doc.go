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

/*
Package gateway is the HTTP surface of QueryGate. It authenticates
callers with bearer tokens, hands each query to the orchestration
engine and shapes the engine's results into the wire response.

Endpoints:

	POST /api/v1/auth/login   credential login, issues a bearer token
	POST /api/v1/query        the single orchestration entry point
	GET  /api/v1/history      the caller's recent conversation turns
	GET  /health              liveness
	GET  /metrics             JSON counters
	GET  /prometheus          Prometheus exposition

Failure detail never crosses this boundary: denied steps name the
missing capability and nothing else, error steps carry an error kind,
and authentication failures are uniform regardless of cause.
*/
package gateway
