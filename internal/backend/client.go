/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ftodialog/internal/storage"
)

// Client talks to the dialog API.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. A trailing slash on baseURL is dropped.
func NewClient(baseURL string, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// SetTimeout changes the per-request timeout.
func (c *Client) SetTimeout(d time.Duration) { c.client.Timeout = d }

// SetInsecureTLS disables certificate verification, for self-signed development servers.
func (c *Client) SetInsecureTLS(insecure bool) {
	if !insecure {
		c.client.Transport = nil
		return
	}
	c.client.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}} //nolint:gosec
}

// APIError is a non-2xx response.
type APIError struct {
	Method string
	Path   string
	Status int
	Msg    string
}

func (e *APIError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("server %s %s: %d %s", e.Method, e.Path, e.Status, e.Msg)
	}
	return fmt.Sprintf("server %s %s: %d", e.Method, e.Path, e.Status)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		return &APIError{Method: method, Path: u.Path, Status: resp.StatusCode, Msg: e.Error}
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// RequestToken asks the server for a bearer token and stores it on the client.
func (c *Client) RequestToken(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	req := map[string]any{"subject": subject, "ttl_seconds": int64(ttl / time.Second)}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", req, &out); err != nil {
		return "", err
	}
	c.Token = out.Token
	return out.Token, nil
}

// ListDialogs returns the shared dialogs.
func (c *Client) ListDialogs(ctx context.Context) ([]DialogSummary, error) {
	var list []DialogSummary
	if err := c.doJSON(ctx, http.MethodGet, "/api/dialogs", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetDialog fetches one dialog by name.
func (c *Client) GetDialog(ctx context.Context, name string) (DialogRecord, error) {
	var rec DialogRecord
	err := c.doJSON(ctx, http.MethodGet, "/api/dialogs/"+url.PathEscape(name), nil, &rec)
	return rec, err
}

// PutDialog uploads a dialog and returns the stored record plus parser warnings.
func (c *Client) PutDialog(ctx context.Context, rec DialogRecord) (DialogRecord, []string, error) {
	var out struct {
		Dialog   DialogRecord `json:"dialog"`
		Warnings []string     `json:"warnings"`
	}
	if err := c.doJSON(ctx, http.MethodPut, "/api/dialogs/"+url.PathEscape(rec.Name), rec, &out); err != nil {
		return DialogRecord{}, nil, err
	}
	return out.Dialog, out.Warnings, nil
}

// DeleteDialog removes a shared dialog.
func (c *Client) DeleteDialog(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/dialogs/"+url.PathEscape(name), nil, nil)
}

// Search runs a line search on the server.
func (c *Client) Search(ctx context.Context, q storage.SearchQuery) ([]storage.SearchResult, error) {
	v := url.Values{}
	if q.Text != "" {
		v.Set("q", q.Text)
	}
	if q.Dialog != "" {
		v.Set("dialog", q.Dialog)
	}
	if q.Author != "" {
		v.Set("author", q.Author)
	}
	for _, k := range q.Kinds {
		v.Add("kind", k)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	var res []storage.SearchResult
	if err := c.doJSON(ctx, http.MethodGet, "/api/search?"+v.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}
