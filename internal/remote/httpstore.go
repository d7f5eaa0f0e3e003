package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TokenSource supplies the bearer token for the signed-in user, or "" when
// nobody is signed in.
type TokenSource interface {
	Token() string
}

// HTTPStore implements Store by calling the backend's /api/v1/db endpoints.
type HTTPStore struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource

	// OnUnauthorized, if set, is called when the backend rejects the token.
	// The auth provider uses it to learn about expired sessions.
	OnUnauthorized func()
}

// Compile-time check: *HTTPStore satisfies Store.
var _ Store = (*HTTPStore)(nil)

// NewHTTPStore creates an HTTPStore targeting the given base URL.
func NewHTTPStore(baseURL string, tokens TokenSource) *HTTPStore {
	return &HTTPStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
	}
}

func (s *HTTPStore) do(ctx context.Context, method string, path Path, body io.Reader) (*http.Response, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+"/api/v1/db/"+path.String(), body)
	if err != nil {
		return nil, fmt.Errorf("httpstore: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.tokens != nil {
		if tok := s.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpstore: %s %s: %w: %w", method, path, ErrUnavailable, err)
	}
	return resp, nil
}

func (s *HTTPStore) failure(method string, path Path, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusUnauthorized && s.OnUnauthorized != nil {
		s.OnUnauthorized()
	}
	return fmt.Errorf("httpstore: %s %s returned %d: %w: %s", method, path, resp.StatusCode, ErrUnavailable, bytes.TrimSpace(body))
}

func (s *HTTPStore) Read(ctx context.Context, path Path, dst any) (bool, error) {
	resp, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return false, nil
	default:
		return false, s.failure(http.MethodGet, path, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return false, fmt.Errorf("httpstore: decode %s: %w", path, err)
	}
	return true, nil
}

func (s *HTTPStore) Write(ctx context.Context, path Path, value any) error {
	if value == nil {
		return s.Delete(ctx, path)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("httpstore: encode %s: %w", path, err)
	}

	resp, err := s.do(ctx, http.MethodPut, path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return s.failure(http.MethodPut, path, resp)
	}
	return nil
}

func (s *HTTPStore) Delete(ctx context.Context, path Path) error {
	resp, err := s.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return s.failure(http.MethodDelete, path, resp)
	}
	return nil
}
