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
Package tools defines the adapter contract every tool backend
implements, plus the error taxonomy the dispatcher's retry policy is
built on.

Each adapter binds to exactly one capability. Authorization happens
before an adapter is ever invoked; adapters validate their own argument
payloads and classify failures as bad-input, unavailable or timeout.
Only unavailable and timeout are retryable.

Side-effecting adapters must honor the dedupe key: a retried invocation
with the same key commits at most once. The subpackages hold the
default adapter set:

  - sqltool: read-only SQL over Postgres or MySQL
  - docsearch: document search over MongoDB or a builtin corpus
  - analyzer: in-process descriptive statistics
  - docgen: document creation with a dedupe ledger
  - advisor: recommendations via the planning-model router
*/
package tools
