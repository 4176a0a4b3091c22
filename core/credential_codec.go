package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	CredentialPayloadFormatJSONV1 = "credentials_json"
	CredentialPayloadVersionV1    = 1
)

type CredentialCodec interface {
	Format() string
	Version() int
	Encode(credentials Credentials) ([]byte, error)
	Decode(payload []byte) (Credentials, error)
}

// JSONCredentialCodec serializes the credential union into a single JSON
// document keyed by auth scheme. OAuth2 expiry travels as epoch seconds.
type JSONCredentialCodec struct{}

func (JSONCredentialCodec) Format() string {
	return CredentialPayloadFormatJSONV1
}

func (JSONCredentialCodec) Version() int {
	return CredentialPayloadVersionV1
}

type jsonOAuth2Payload struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresAt    *int64 `json:"expires_at,omitempty"`
}

type jsonAPIKeyPayload struct {
	Key string `json:"key,omitempty"`
}

type jsonBasicPayload struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

type jsonBearerPayload struct {
	Token string `json:"token,omitempty"`
}

type jsonCredentialPayload struct {
	Scheme string             `json:"scheme"`
	OAuth  *jsonOAuth2Payload `json:"oauth,omitempty"`
	APIKey *jsonAPIKeyPayload `json:"api_key,omitempty"`
	Basic  *jsonBasicPayload  `json:"basic,omitempty"`
	Bearer *jsonBearerPayload `json:"bearer,omitempty"`
	Custom map[string]string  `json:"custom,omitempty"`
}

func (JSONCredentialCodec) Encode(credentials Credentials) ([]byte, error) {
	if err := credentials.Validate(); err != nil {
		return nil, err
	}
	payload := jsonCredentialPayload{
		Scheme: strings.TrimSpace(strings.ToLower(string(credentials.Scheme))),
	}
	if credentials.OAuth2 != nil {
		oauth := &jsonOAuth2Payload{
			AccessToken:  strings.TrimSpace(credentials.OAuth2.AccessToken),
			RefreshToken: strings.TrimSpace(credentials.OAuth2.RefreshToken),
			TokenType:    strings.TrimSpace(credentials.OAuth2.TokenType),
			Scope:        strings.TrimSpace(credentials.OAuth2.Scope),
		}
		if credentials.OAuth2.ExpiresAt != nil {
			epoch := credentials.OAuth2.ExpiresAt.UTC().Unix()
			oauth.ExpiresAt = &epoch
		}
		payload.OAuth = oauth
	}
	if credentials.APIKey != nil {
		payload.APIKey = &jsonAPIKeyPayload{Key: strings.TrimSpace(credentials.APIKey.Key)}
	}
	if credentials.Basic != nil {
		payload.Basic = &jsonBasicPayload{
			Username: strings.TrimSpace(credentials.Basic.Username),
			Password: credentials.Basic.Password,
		}
	}
	if credentials.Bearer != nil {
		payload.Bearer = &jsonBearerPayload{Token: strings.TrimSpace(credentials.Bearer.Token)}
	}
	if len(credentials.Custom) > 0 {
		payload.Custom = make(map[string]string, len(credentials.Custom))
		for key, value := range credentials.Custom {
			payload.Custom[key] = value
		}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("core: encode credential payload: %w", err)
	}
	return encoded, nil
}

func (JSONCredentialCodec) Decode(payload []byte) (Credentials, error) {
	if len(payload) == 0 {
		return Credentials{}, fmt.Errorf("%w: credential payload is empty", ErrDecryption)
	}
	decoded := jsonCredentialPayload{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Credentials{}, fmt.Errorf("%w: decode credential payload: %v", ErrDecryption, err)
	}

	credentials := Credentials{}
	scheme, err := ParseAuthScheme(decoded.Scheme)
	if err != nil {
		// Legacy rows were written before the scheme tag existed; infer
		// the variant from the populated section.
		scheme = inferScheme(decoded)
		if scheme == "" {
			return Credentials{}, fmt.Errorf("%w: credential payload has no recognizable scheme", ErrDecryption)
		}
	}
	credentials.Scheme = scheme

	if decoded.OAuth != nil {
		oauth := &OAuth2Credentials{
			AccessToken:  strings.TrimSpace(decoded.OAuth.AccessToken),
			RefreshToken: strings.TrimSpace(decoded.OAuth.RefreshToken),
			TokenType:    strings.TrimSpace(decoded.OAuth.TokenType),
			Scope:        strings.TrimSpace(decoded.OAuth.Scope),
		}
		if decoded.OAuth.ExpiresAt != nil {
			expires := time.Unix(*decoded.OAuth.ExpiresAt, 0).UTC()
			oauth.ExpiresAt = &expires
		}
		credentials.OAuth2 = oauth
	}
	if decoded.APIKey != nil {
		credentials.APIKey = &APIKeyCredentials{Key: strings.TrimSpace(decoded.APIKey.Key)}
	}
	if decoded.Basic != nil {
		credentials.Basic = &BasicCredentials{
			Username: strings.TrimSpace(decoded.Basic.Username),
			Password: decoded.Basic.Password,
		}
	}
	if decoded.Bearer != nil {
		credentials.Bearer = &BearerCredentials{Token: strings.TrimSpace(decoded.Bearer.Token)}
	}
	if len(decoded.Custom) > 0 {
		credentials.Custom = make(map[string]string, len(decoded.Custom))
		for key, value := range decoded.Custom {
			credentials.Custom[key] = value
		}
	}
	return credentials, nil
}

func inferScheme(payload jsonCredentialPayload) AuthScheme {
	switch {
	case payload.OAuth != nil:
		return AuthSchemeOAuth2
	case payload.APIKey != nil:
		return AuthSchemeAPIKey
	case payload.Basic != nil:
		return AuthSchemeBasic
	case payload.Bearer != nil:
		return AuthSchemeBearer
	case len(payload.Custom) > 0:
		return AuthSchemeCustom
	default:
		return ""
	}
}

// EncryptedCredentialCodec composes a plaintext codec with a secret
// provider. Stored payloads are envelope ciphertext, never valid JSON, so a
// missing decryption layer fails loudly instead of leaking tokens.
type EncryptedCredentialCodec struct {
	inner   CredentialCodec
	secrets SecretProvider
}

func NewEncryptedCredentialCodec(inner CredentialCodec, secrets SecretProvider) (*EncryptedCredentialCodec, error) {
	if secrets == nil {
		return nil, fmt.Errorf("core: secret provider is required")
	}
	if inner == nil {
		inner = JSONCredentialCodec{}
	}
	return &EncryptedCredentialCodec{inner: inner, secrets: secrets}, nil
}

func (c *EncryptedCredentialCodec) Format() string {
	if c == nil || c.inner == nil {
		return CredentialPayloadFormatJSONV1
	}
	return c.inner.Format()
}

func (c *EncryptedCredentialCodec) Version() int {
	if c == nil || c.inner == nil {
		return CredentialPayloadVersionV1
	}
	return c.inner.Version()
}

func (c *EncryptedCredentialCodec) Encode(credentials Credentials) ([]byte, error) {
	if c == nil || c.secrets == nil {
		return nil, fmt.Errorf("core: encrypted credential codec is not configured")
	}
	plaintext, err := c.inner.Encode(credentials)
	if err != nil {
		return nil, err
	}
	ciphertext, err := c.secrets.Encrypt(context.Background(), plaintext)
	if err != nil {
		return nil, fmt.Errorf("core: encrypt credential payload: %w", err)
	}
	return ciphertext, nil
}

func (c *EncryptedCredentialCodec) Decode(payload []byte) (Credentials, error) {
	if c == nil || c.secrets == nil {
		return Credentials{}, fmt.Errorf("core: encrypted credential codec is not configured")
	}
	if len(payload) == 0 {
		return Credentials{}, fmt.Errorf("%w: credential payload is empty", ErrDecryption)
	}
	plaintext, err := c.secrets.Decrypt(context.Background(), payload)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return c.inner.Decode(plaintext)
}

func cloneTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := value.UTC()
	return &clone
}
