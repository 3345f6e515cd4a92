package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// RESTBackend implements Backend against the Identity Toolkit API. The
// credential is passed as a query parameter, the same way the generation
// endpoint takes it.
type RESTBackend struct {
	Endpoint string
	APIKey   string
	HTTP     *http.Client

	mu      sync.Mutex
	current *Principal
	subs    map[int]func(*Principal)
	nextSub int
}

func NewRESTBackend(endpoint, apiKey string) *RESTBackend {
	return &RESTBackend{
		Endpoint: endpoint,
		APIKey:   apiKey,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
		subs:     make(map[int]func(*Principal)),
	}
}

// SignInAnonymously creates a fresh anonymous principal.
func (b *RESTBackend) SignInAnonymously(ctx context.Context) (*Principal, error) {
	var response struct {
		LocalID string `json:"localId"`
	}
	err := b.post(ctx, "accounts:signUp", map[string]any{
		"returnSecureToken": true,
	}, &response)
	if err != nil {
		return nil, fmt.Errorf("anonymous sign-in: %w", err)
	}

	principal := &Principal{ID: response.LocalID, Anonymous: true}
	b.setCurrent(principal)
	return principal, nil
}

// SignInWithToken exchanges a custom token for a session. The exchange does
// not report the uid, so it is followed by an accounts:lookup.
func (b *RESTBackend) SignInWithToken(ctx context.Context, token string) (*Principal, error) {
	var exchange struct {
		IDToken string `json:"idToken"`
	}
	err := b.post(ctx, "accounts:signInWithCustomToken", map[string]any{
		"token":             token,
		"returnSecureToken": true,
	}, &exchange)
	if err != nil {
		return nil, fmt.Errorf("token sign-in: %w", err)
	}

	var lookup struct {
		Users []struct {
			LocalID string `json:"localId"`
		} `json:"users"`
	}
	err = b.post(ctx, "accounts:lookup", map[string]any{
		"idToken": exchange.IDToken,
	}, &lookup)
	if err != nil {
		return nil, fmt.Errorf("account lookup: %w", err)
	}

	principal := &Principal{Anonymous: false}
	if len(lookup.Users) > 0 {
		principal.ID = lookup.Users[0].LocalID
	}
	b.setCurrent(principal)
	return principal, nil
}

// Subscribe registers an auth-state callback and delivers the current
// principal immediately.
func (b *RESTBackend) Subscribe(fn func(*Principal)) (cancel func()) {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	current := b.current
	b.mu.Unlock()

	fn(current)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

func (b *RESTBackend) setCurrent(principal *Principal) {
	b.mu.Lock()
	b.current = principal
	subs := make([]func(*Principal), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(principal)
	}
}

func (b *RESTBackend) post(ctx context.Context, action string, body, out any) error {
	requestBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s?key=%s", b.Endpoint, action, url.QueryEscape(b.APIKey))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}

	return nil
}
