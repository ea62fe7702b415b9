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
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"querygate/platform/config"
	"querygate/platform/llm"
	"querygate/platform/orchestrator"
	"querygate/platform/session"
	"querygate/platform/tools"
	"querygate/platform/tools/advisor"
	"querygate/platform/tools/analyzer"
	"querygate/platform/tools/docgen"
	"querygate/platform/tools/docsearch"
	"querygate/platform/tools/sqltool"
)

// Server holds the wired gateway: authentication, the orchestration
// engine and the optional session store.
type Server struct {
	auth           *Authenticator
	engine         *orchestrator.Engine
	sessions       *session.Manager
	audit          *orchestrator.AuditSink
	metrics        *gatewayMetrics
	requestTimeout time.Duration
}

// NewServer wires a gateway from already-built collaborators. A zero
// requestTimeout leaves query runs bounded only by client disconnect.
func NewServer(auth *Authenticator, engine *orchestrator.Engine, sessions *session.Manager, audit *orchestrator.AuditSink, requestTimeout time.Duration) *Server {
	return &Server{
		auth:           auth,
		engine:         engine,
		sessions:       sessions,
		audit:          audit,
		metrics:        newGatewayMetrics(),
		requestTimeout: requestTimeout,
	}
}

// Router builds the HTTP route table
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/metrics", s.handleMetrics).Methods("GET")
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/api/v1/auth/login", s.handleLogin).Methods("POST")
	r.HandleFunc("/api/v1/query", s.handleQuery).Methods("POST")
	r.HandleFunc("/api/v1/history", s.handleHistory).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return c.Handler(r)
}

// Run builds every component from configuration and serves until the
// process exits.
func Run() {
	log.Println("Starting QueryGate gateway...")

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be configured")
	}

	audit := orchestrator.NewAuditSink(cfg.AuditDatabaseURL)
	defer audit.Close()

	registry, err := orchestrator.NewRegistry(cfg.RoleGrants)
	if err != nil {
		log.Fatalf("grant configuration error: %v", err)
	}

	router, err := llm.NewRouter(llm.Config{
		OpenAIKey:     cfg.OpenAIKey,
		AnthropicKey:  cfg.AnthropicKey,
		BedrockRegion: cfg.BedrockRegion,
		BedrockModel:  cfg.BedrockModel,
	})
	if err != nil {
		log.Fatalf("planning model configuration error: %v", err)
	}

	adapters := buildAdapters(cfg, router)
	if err := registry.ValidateCoverage(adapters); err != nil {
		log.Fatalf("capability coverage error: %v", err)
	}

	gatekeeper := orchestrator.NewGatekeeper(registry, audit)
	planner := orchestrator.NewPlanner(router)
	summarizer := orchestrator.NewSummarizer(router)
	dispatcher := orchestrator.NewDispatcher(adapters, audit, cfg.PoolSize, cfg.MaxRetries, cfg.RetryBackoff())
	engine := orchestrator.NewEngine(gatekeeper, planner, dispatcher, summarizer, audit)

	var sessions *session.Manager
	if cfg.RedisAddr != "" {
		sessions, err = session.NewManager(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Printf("session store unavailable, continuing without history: %v", err)
		} else {
			defer sessions.Close()
		}
	}

	auth, err := NewAuthenticator(cfg.JWTSecret, time.Duration(cfg.TokenTTLMinutes)*time.Minute)
	if err != nil {
		log.Fatalf("authenticator error: %v", err)
	}

	server := NewServer(auth, engine, sessions, audit, cfg.RequestTimeout())

	log.Printf("QueryGate gateway listening on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, server.Router()))
}

// buildAdapters registers every tool backend the configuration enables.
// The analyzer, docgen and advisor adapters are always available; the
// SQL and document-search adapters need backend configuration.
func buildAdapters(cfg *config.Config, router *llm.Router) []tools.Adapter {
	adapters := []tools.Adapter{
		analyzer.New(),
		docgen.New(),
		advisor.New(router),
	}

	if cfg.SQLDSN != "" {
		sqlAdapter, err := sqltool.New(cfg.SQLDriver, cfg.SQLDSN)
		if err != nil {
			log.Printf("structured-data backend unavailable: %v", err)
		} else {
			adapters = append(adapters, sqlAdapter)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	search, err := docsearch.New(ctx, cfg.MongoURI)
	if err != nil {
		log.Printf("document store unavailable, using builtin corpus: %v", err)
		search, _ = docsearch.New(context.Background(), "")
	}
	adapters = append(adapters, search)

	return adapters
}
