package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxTokenResponseBodyBytes = 1 << 20 // 1 MiB

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	RefreshToken string
	Scopes       []string
}

// TokenGrant is the normalized outcome of a token endpoint exchange.
// ExpiresAt is absolute; nil means the provider reported no expiry.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    *time.Time
}

type TokenClient interface {
	Exchange(ctx context.Context, cfg ProviderConfig, req TokenRequest) (TokenGrant, error)
}

type HTTPTokenClient struct {
	httpClient HTTPDoer
	timeout    time.Duration
	now        func() time.Time
}

type HTTPTokenClientOption func(*HTTPTokenClient)

func WithTokenHTTPClient(client HTTPDoer) HTTPTokenClientOption {
	return func(c *HTTPTokenClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithTokenClock(now func() time.Time) HTTPTokenClientOption {
	return func(c *HTTPTokenClient) {
		if now != nil {
			c.now = now
		}
	}
}

func NewHTTPTokenClient(timeout time.Duration, opts ...HTTPTokenClientOption) *HTTPTokenClient {
	if timeout <= 0 {
		timeout = DefaultTokenRequestTimeout
	}
	client := &HTTPTokenClient{
		timeout: timeout,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: timeout}
	}
	return client
}

func (c *HTTPTokenClient) Exchange(ctx context.Context, cfg ProviderConfig, req TokenRequest) (TokenGrant, error) {
	if c == nil || c.httpClient == nil {
		return TokenGrant{}, fmt.Errorf("core: token client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	tokenURL := cfg.TokenEndpoint()
	if strings.TrimSpace(tokenURL) == "" {
		return TokenGrant{}, fmt.Errorf("%w: token endpoint is missing", ErrNotConfigured)
	}

	values := url.Values{}
	values.Set("grant_type", strings.TrimSpace(req.GrantType))
	if code := strings.TrimSpace(req.Code); code != "" {
		values.Set("code", code)
	}
	if redirectURI := strings.TrimSpace(req.RedirectURI); redirectURI != "" {
		values.Set("redirect_uri", redirectURI)
	}
	if refreshToken := strings.TrimSpace(req.RefreshToken); refreshToken != "" {
		values.Set("refresh_token", refreshToken)
	}
	if len(req.Scopes) > 0 {
		values.Set("scope", strings.Join(req.Scopes, " "))
	}
	values.Set("client_id", cfg.ClientID)
	if !cfg.ClientSecretBasicAuth && strings.TrimSpace(cfg.ClientSecret) != "" {
		values.Set("client_secret", cfg.ClientSecret)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := buildTokenHTTPRequest(requestCtx, cfg, tokenURL, values)
	if err != nil {
		return TokenGrant{}, err
	}
	if cfg.ClientSecretBasicAuth && strings.TrimSpace(cfg.ClientSecret) != "" {
		httpReq.SetBasicAuth(cfg.ClientID, cfg.ClientSecret)
	}

	response, err := c.httpClient.Do(httpReq)
	if err != nil {
		return TokenGrant{}, fmt.Errorf("%w: token request failed: %v", ErrTokenExchange, err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes+1))
	if readErr != nil {
		return TokenGrant{}, fmt.Errorf("%w: read token response: %v", ErrTokenExchange, readErr)
	}
	if int64(len(body)) > maxTokenResponseBodyBytes {
		return TokenGrant{}, fmt.Errorf("%w: token response exceeds %d bytes", ErrTokenExchange, maxTokenResponseBodyBytes)
	}

	payload, parseErr := parseTokenPayload(body, response.Header.Get("Content-Type"))
	if parseErr != nil {
		return TokenGrant{}, fmt.Errorf("%w: decode token response: %v", ErrTokenExchange, parseErr)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return TokenGrant{}, fmt.Errorf(
			"%w: token endpoint error (%d): %s",
			ErrTokenExchange,
			response.StatusCode,
			describeTokenError(payload, body),
		)
	}
	if payload.ErrorCode != "" {
		return TokenGrant{}, fmt.Errorf("%w: token endpoint error: %s", ErrTokenExchange, describeTokenError(payload, body))
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return TokenGrant{}, fmt.Errorf("%w: token endpoint response missing access token", ErrTokenExchange)
	}

	grant := TokenGrant{
		AccessToken:  strings.TrimSpace(payload.AccessToken),
		RefreshToken: strings.TrimSpace(payload.RefreshToken),
		TokenType:    normalizeTokenType(payload.TokenType),
		Scope:        strings.TrimSpace(payload.Scope),
	}
	if payload.ExpiresIn > 0 {
		expiresAt := c.now().UTC().Add(time.Duration(payload.ExpiresIn) * time.Second)
		grant.ExpiresAt = &expiresAt
	}
	return grant, nil
}

func buildTokenHTTPRequest(ctx context.Context, cfg ProviderConfig, tokenURL string, values url.Values) (*http.Request, error) {
	if cfg.ExchangeMethod() == TokenExchangeGet {
		requestURL := tokenURL
		if strings.Contains(requestURL, "?") {
			requestURL += "&" + values.Encode()
		} else {
			requestURL += "?" + values.Encode()
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: build token request: %v", ErrTokenExchange, err)
		}
		httpReq.Header.Set("Accept", "application/json")
		return httpReq, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: build token request: %v", ErrTokenExchange, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	return httpReq, nil
}

type tokenEndpointPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	Scope            string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
}

func describeTokenError(payload tokenEndpointPayload, body []byte) string {
	if strings.TrimSpace(payload.ErrorDescription) != "" {
		return strings.TrimSpace(payload.ErrorDescription)
	}
	if strings.TrimSpace(payload.ErrorCode) != "" {
		return strings.TrimSpace(payload.ErrorCode)
	}
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		return trimmed
	}
	return "unknown error"
}

func parseTokenPayload(body []byte, contentType string) (tokenEndpointPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parseTokenPayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (tokenEndpointPayload, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	return tokenEndpointPayload{
		AccessToken:      readAnyString(decoded["access_token"]),
		TokenType:        readAnyString(decoded["token_type"]),
		RefreshToken:     readAnyString(decoded["refresh_token"]),
		Scope:            readAnyString(decoded["scope"]),
		ExpiresIn:        readAnyInt64(decoded["expires_in"]),
		ErrorCode:        readAnyString(decoded["error"]),
		ErrorDescription: readAnyString(decoded["error_description"]),
	}, nil
}

func parseTokenPayloadForm(body []byte) (tokenEndpointPayload, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return tokenEndpointPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		Scope:            strings.TrimSpace(values.Get("scope")),
		ExpiresIn:        expiresIn,
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}

func normalizeTokenType(value string) string {
	normalized := strings.TrimSpace(value)
	if normalized == "" {
		return "Bearer"
	}
	return normalized
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
		floatParsed, floatErr := typed.Float64()
		if floatErr == nil {
			return int64(floatParsed)
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}
