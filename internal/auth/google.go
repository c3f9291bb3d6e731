package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultGoogleDiscoveryURL = "https://accounts.google.com/.well-known/openid-configuration"

// ErrEmailNotVerified is returned when the provider has not verified the
// account email; such identities must never be mapped to a local user.
var ErrEmailNotVerified = errors.New("email not available or not verified by provider")

// GoogleConfig configures the OAuth client registered with Google.
// DiscoveryURL may be overridden in tests to point at a fake provider.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	DiscoveryURL string
	HTTPClient   *http.Client
}

// GoogleProvider performs the OAuth2 authorization-code flow against Google's
// OpenID Connect endpoints, resolved from the discovery document.
type GoogleProvider struct {
	cfg        GoogleConfig
	httpClient *http.Client
}

// GoogleUser is the subset of the userinfo response this service consumes.
type GoogleUser struct {
	Email     string
	GivenName string
}

// NewGoogleProvider constructs a provider, applying defaults for the
// discovery URL and HTTP client.
func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	if cfg.DiscoveryURL == "" {
		cfg.DiscoveryURL = defaultGoogleDiscoveryURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &GoogleProvider{cfg: cfg, httpClient: httpClient}
}

type discoveryDocument struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
}

type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
}

// AuthCodeURL builds the authorization redirect URL with the openid, email
// and profile scopes.
func (p *GoogleProvider) AuthCodeURL(ctx context.Context, redirectURI, state string) (string, error) {
	doc, err := p.fetchDiscovery(ctx)
	if err != nil {
		return "", err
	}

	params := url.Values{
		"client_id":     {p.cfg.ClientID},
		"redirect_uri":  {redirectURI},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
	}
	return doc.AuthorizationEndpoint + "?" + params.Encode(), nil
}

// Exchange trades the authorization code for an access token, fetches user
// info, and enforces that the provider has verified the email.
func (p *GoogleProvider) Exchange(ctx context.Context, code, redirectURI string) (*GoogleUser, error) {
	doc, err := p.fetchDiscovery(ctx)
	if err != nil {
		return nil, err
	}

	token, err := p.exchangeToken(ctx, doc.TokenEndpoint, code, redirectURI)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	info, err := p.fetchUserInfo(ctx, doc.UserinfoEndpoint, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}

	if info.Email == "" || !info.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	return &GoogleUser{
		Email:     info.Email,
		GivenName: info.GivenName,
	}, nil
}

func (p *GoogleProvider) fetchDiscovery(ctx context.Context) (*discoveryDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.DiscoveryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build discovery request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch discovery document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery document status %d", resp.StatusCode)
	}

	var doc discoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode discovery document: %w", err)
	}
	if doc.AuthorizationEndpoint == "" || doc.TokenEndpoint == "" || doc.UserinfoEndpoint == "" {
		return nil, errors.New("discovery document missing endpoints")
	}
	return &doc, nil
}

func (p *GoogleProvider) exchangeToken(ctx context.Context, tokenEndpoint, code, redirectURI string) (*googleTokenResponse, error) {
	form := url.Values{
		"code":          {code},
		"client_id":     {p.cfg.ClientID},
		"client_secret": {p.cfg.ClientSecret},
		"redirect_uri":  {redirectURI},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return nil, fmt.Errorf("token endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var token googleTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("empty access token in response")
	}
	return &token, nil
}

func (p *GoogleProvider) fetchUserInfo(ctx context.Context, userinfoEndpoint, accessToken string) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userinfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return nil, fmt.Errorf("userinfo endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info response: %w", err)
	}
	return &info, nil
}

// FallbackUsername derives a username for a federated account: the
// provider's given name, or the local part of the email when absent.
func (u *GoogleUser) FallbackUsername() string {
	if name := strings.TrimSpace(u.GivenName); name != "" {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}
