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
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"querygate/platform/shared/types"
)

// Authenticator issues and validates the HS256 bearer tokens the
// gateway trusts. The orchestration engine takes the resulting Identity
// verbatim and never re-derives roles from anywhere else.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	users  map[string]seededUser
}

type seededUser struct {
	id           string
	name         string
	role         string
	tenantID     string
	passwordHash []byte
}

// NewAuthenticator creates an authenticator with the demo credential
// store. Replace the store with a directory integration in production;
// the token contract stays the same.
func NewAuthenticator(secret string, ttl time.Duration) (*Authenticator, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret must not be empty")
	}

	users := make(map[string]seededUser)
	for _, u := range []struct {
		email, id, name, role, tenant, password string
	}{
		{"admin@example.com", "u-1001", "Admin User", "admin", "tenant-1", "admin123"},
		{"analyst@example.com", "u-1002", "Data Analyst", "analyst", "tenant-1", "analyst123"},
		{"support@example.com", "u-1003", "Support Agent", "support", "tenant-1", "support123"},
		{"viewer@example.com", "u-1004", "Read Only", "viewer", "tenant-2", "viewer123"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash seeded password: %w", err)
		}
		users[u.email] = seededUser{
			id: u.id, name: u.name, role: u.role, tenantID: u.tenant, passwordHash: hash,
		}
	}

	return &Authenticator{secret: []byte(secret), ttl: ttl, users: users}, nil
}

// Login verifies credentials and issues a signed token
func (a *Authenticator) Login(email, password string) (string, types.Identity, error) {
	user, ok := a.users[email]
	if !ok {
		return "", types.Identity{}, fmt.Errorf("incorrect email or password")
	}
	if err := bcrypt.CompareHashAndPassword(user.passwordHash, []byte(password)); err != nil {
		return "", types.Identity{}, fmt.Errorf("incorrect email or password")
	}

	expiresAt := time.Now().Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       user.id,
		"email":     email,
		"name":      user.name,
		"role":      user.role,
		"tenant_id": user.tenantID,
		"exp":       expiresAt.Unix(),
	})

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", types.Identity{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, types.Identity{
		ID:        user.id,
		Email:     email,
		Name:      user.name,
		Role:      user.role,
		TenantID:  user.tenantID,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate parses and verifies a bearer token, returning the identity it
// attests. Any verification failure (bad signature, expiry, missing
// claims) is an authentication failure, never a permission decision.
func (a *Authenticator) Validate(tokenString string) (types.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return types.Identity{}, fmt.Errorf("invalid token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return types.Identity{}, fmt.Errorf("invalid token claims")
	}

	id := claimString(claims, "sub")
	role := claimString(claims, "role")
	if id == "" || role == "" {
		return types.Identity{}, fmt.Errorf("token missing identity claims")
	}

	identity := types.Identity{
		ID:       id,
		Email:    claimString(claims, "email"),
		Name:     claimString(claims, "name"),
		Role:     role,
		TenantID: claimString(claims, "tenant_id"),
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}

	return identity, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	if value, ok := claims[key].(string); ok {
		return value
	}
	return ""
}
