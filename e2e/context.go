// Package e2e drives the running service over plain HTTP the way the
// role-specific screens do. The suite assumes a server started with the dev
// signing key; point DISHA_E2E_BASE_URL at it.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestContext carries shared state across the steps of one scenario: the
// HTTP client, the last response, and named values captured along the way
// (candidate id, case id, current version).
type TestContext struct {
	baseURL    string
	signingKey []byte
	client     *http.Client

	lastStatus int
	lastBody   map[string]any
	vars       map[string]string
}

func NewTestContext(baseURL string, signingKey []byte) *TestContext {
	return &TestContext{
		baseURL:    strings.TrimRight(baseURL, "/"),
		signingKey: signingKey,
		client:     &http.Client{Timeout: 10 * time.Second},
		vars:       make(map[string]string),
	}
}

// Reset clears captured state between scenarios.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.vars = make(map[string]string)
}

func (tc *TestContext) POST(path, role string, body map[string]any) error {
	return tc.do(http.MethodPost, path, role, body)
}

func (tc *TestContext) PATCH(path, role string, body map[string]any) error {
	return tc.do(http.MethodPatch, path, role, body)
}

func (tc *TestContext) GET(path, role string) error {
	return tc.do(http.MethodGet, path, role, nil)
}

func (tc *TestContext) do(method, path, role string, body map[string]any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, tc.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		token, err := tc.signToken(role)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody = nil
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if len(raw) > 0 {
		var decoded map[string]any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			tc.lastBody = decoded
		}
	}
	return nil
}

func (tc *TestContext) signToken(role string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  "e2e-" + role,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", role, err)
	}
	return token, nil
}

// LastStatus returns the status code of the most recent response.
func (tc *TestContext) LastStatus() int { return tc.lastStatus }

// Field resolves a dotted path ("candidate.state.pipeline") in the last
// response body.
func (tc *TestContext) Field(path string) (any, error) {
	if tc.lastBody == nil {
		return nil, fmt.Errorf("no response body captured")
	}
	var current any = tc.lastBody
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", path, part)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q: %q not present", path, part)
		}
	}
	return current, nil
}

// SetVar stores a named value for later steps in the same scenario.
func (tc *TestContext) SetVar(name, value string) { tc.vars[name] = value }

// Var returns a previously captured value, or "".
func (tc *TestContext) Var(name string) string { return tc.vars[name] }
