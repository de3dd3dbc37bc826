package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
)

// TokenStore persists per-owner OAuth2 tokens.
type TokenStore interface {
	Load(owner string) (*oauth2.Token, error)
	Save(owner string, token *oauth2.Token) error
	Delete(owner string) error
}

// FileTokenStore keeps one JSON token file per owner under a directory.
type FileTokenStore struct {
	dir string
}

func NewFileTokenStore(dir string) (*FileTokenStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create token directory: %w", err)
	}
	return &FileTokenStore{dir: dir}, nil
}

func (s *FileTokenStore) Load(owner string) (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path(owner))
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode token for %s: %w", owner, err)
	}
	return &token, nil
}

func (s *FileTokenStore) Save(owner string, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token for %s: %w", owner, err)
	}
	return os.WriteFile(s.path(owner), data, 0o600)
}

func (s *FileTokenStore) Delete(owner string) error {
	err := os.Remove(s.path(owner))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// path flattens the owner id into a safe filename. Chat ids carry '@'
// and '.' which are fine, but guard against separators anyway.
func (s *FileTokenStore) path(owner string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(owner)
	return filepath.Join(s.dir, safe+".json")
}

// AuthFlow drives the OAuth2 consent dance. The owner id rides in the
// state parameter so the callback knows whose token to store.
type AuthFlow struct {
	oauth   *oauth2.Config
	tokens  TokenStore
	gateway *Gateway
}

func NewAuthFlow(oauthConfig *oauth2.Config, tokens TokenStore, gateway *Gateway) *AuthFlow {
	return &AuthFlow{oauth: oauthConfig, tokens: tokens, gateway: gateway}
}

func (f *AuthFlow) AuthURL(owner string) string {
	return f.oauth.AuthCodeURL(owner, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Complete exchanges the authorization code and stores the token for the
// owner carried in state.
func (f *AuthFlow) Complete(ctx context.Context, state, code string) error {
	if state == "" {
		return fmt.Errorf("missing state")
	}
	token, err := f.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := f.tokens.Save(state, token); err != nil {
		return err
	}
	f.gateway.Disconnect(state)
	return nil
}

// Revoke removes stored credentials and drops the cached client.
func (f *AuthFlow) Revoke(owner string) error {
	if err := f.tokens.Delete(owner); err != nil {
		return err
	}
	f.gateway.Disconnect(owner)
	return nil
}
