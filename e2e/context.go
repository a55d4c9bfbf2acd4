// Package e2e drives a running poolshare server through Gherkin scenarios.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TestContext holds the per-scenario state shared by every step package.
type TestContext struct {
	baseURL    string
	adminToken string
	adminID    string
	http       *http.Client

	principals map[string]string
	services   map[string]string
	tokens     map[string]string
	actor      string
	proposal   string

	lastStatus int
	lastBody   []byte
}

// NewTestContext reads POOLSHARE_E2E_URL, POOLSHARE_E2E_ADMIN_TOKEN and
// POOLSHARE_E2E_ADMIN_ID. The admin id must match the server's ADMIN_PRINCIPAL_ID.
func NewTestContext() *TestContext {
	return &TestContext{
		baseURL:    strings.TrimRight(os.Getenv("POOLSHARE_E2E_URL"), "/"),
		adminToken: os.Getenv("POOLSHARE_E2E_ADMIN_TOKEN"),
		adminID:    os.Getenv("POOLSHARE_E2E_ADMIN_ID"),
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

// Reset clears scenario state. Principals are fresh per scenario so
// scenarios never observe each other's memberships.
func (tc *TestContext) Reset() {
	tc.principals = map[string]string{"admin": tc.adminID}
	tc.services = map[string]string{}
	tc.tokens = map[string]string{}
	tc.actor = ""
	tc.proposal = ""
	tc.lastStatus = 0
	tc.lastBody = nil
}

func (tc *TestContext) BaseURL() string { return tc.baseURL }

// Principal returns the id behind a scenario name, creating one on first use.
func (tc *TestContext) Principal(name string) string {
	if p, ok := tc.principals[name]; ok {
		return p
	}
	p := uuid.NewString()
	tc.principals[name] = p
	return p
}

// Service returns the server-side id for a scenario service name. Ids carry a
// random suffix because the server keeps services across scenarios.
func (tc *TestContext) Service(name string) string {
	if s, ok := tc.services[name]; ok {
		return s
	}
	s := name + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	tc.services[name] = s
	return s
}

// Proposal is the id of the last proposal created in the scenario.
func (tc *TestContext) Proposal() string     { return tc.proposal }
func (tc *TestContext) SetProposal(p string) { tc.proposal = p }

// ActAs makes name the caller of subsequent requests, minting a token if needed.
func (tc *TestContext) ActAs(name string) error {
	if _, ok := tc.tokens[name]; !ok {
		raw, err := tc.send(http.MethodPost, "/admin/tokens",
			map[string]string{"principal_id": tc.Principal(name)},
			map[string]string{"X-Admin-Token": tc.adminToken})
		if err != nil {
			return err
		}
		if tc.lastStatus != http.StatusCreated {
			return fmt.Errorf("minting token for %s: status %d: %s", name, tc.lastStatus, raw)
		}
		var resp struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return err
		}
		tc.tokens[name] = resp.AccessToken
	}
	tc.actor = name
	return nil
}

func (tc *TestContext) POST(path string, body any) error {
	_, err := tc.send(http.MethodPost, path, body, tc.authHeader())
	return err
}

func (tc *TestContext) PUT(path string, body any) error {
	_, err := tc.send(http.MethodPut, path, body, tc.authHeader())
	return err
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	if headers == nil {
		headers = tc.authHeader()
	}
	_, err := tc.send(http.MethodGet, path, nil, headers)
	return err
}

func (tc *TestContext) DELETE(path string) error {
	_, err := tc.send(http.MethodDelete, path, nil, tc.authHeader())
	return err
}

func (tc *TestContext) GetLastResponseStatus() int  { return tc.lastStatus }
func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }

// GetResponseField reads a dotted path ("group.id") from the last JSON body.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	for _, part := range strings.Split(field, ".") {
		obj, ok := doc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, part)
		}
		doc, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not found in %s", field, tc.lastBody)
		}
	}
	return doc, nil
}

func (tc *TestContext) authHeader() map[string]string {
	if tc.actor == "" {
		return map[string]string{}
	}
	return map[string]string{"Authorization": "Bearer " + tc.tokens[tc.actor]}
}

func (tc *TestContext) send(method, path string, body any, headers map[string]string) ([]byte, error) {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := tc.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	tc.lastStatus = resp.StatusCode
	tc.lastBody = raw
	return raw, nil
}
