package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// IsTokenExpired reports whether the access token has already lapsed. A nil
// expiry means the token never expires.
func IsTokenExpired(credentials Credentials, now time.Time) bool {
	if credentials.OAuth2 == nil || credentials.OAuth2.ExpiresAt == nil {
		return false
	}
	return !now.UTC().Before(credentials.OAuth2.ExpiresAt.UTC())
}

// IsTokenExpiringSoon reports whether the access token lapses within the
// window. Already-expired tokens are not "expiring soon"; they are expired.
func IsTokenExpiringSoon(credentials Credentials, now time.Time, window time.Duration) bool {
	if credentials.OAuth2 == nil || credentials.OAuth2.ExpiresAt == nil {
		return false
	}
	delta := credentials.OAuth2.ExpiresAt.UTC().Sub(now.UTC())
	return delta > 0 && delta < window
}

// ValidAccessToken returns a usable access token for the principal. Tokens
// inside the refresh window are refreshed first; when a refresh attempt
// fails, the stored token is returned flagged as stale rather than failing
// the caller outright, even if it has already lapsed. The provider is the
// final arbiter of whether a stale token still works.
func (s *Service) ValidAccessToken(ctx context.Context, req ValidTokenRequest) (access TokenAccess, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"connection_id": req.ConnectionID,
		"owner_id":      req.Principal.ID,
	}
	defer func() {
		fields["stale"] = access.Stale
		s.observeOperation(ctx, startedAt, "valid_access_token", err, fields)
	}()

	connection, err := s.loadConnection(ctx, req.ConnectionID)
	if err != nil {
		err = s.mapError(err)
		return TokenAccess{}, err
	}
	if err = s.authorizeUse(ctx, connection, req.Principal); err != nil {
		err = s.mapError(err)
		return TokenAccess{}, err
	}
	if connection.AuthScheme != AuthSchemeOAuth2 || connection.Credentials.OAuth2 == nil {
		err = s.mapError(fmt.Errorf("core: connection %s does not carry oauth2 credentials", connection.ID))
		return TokenAccess{}, err
	}

	window := req.RefreshWindow
	if window <= 0 {
		window = s.accessTokenRefreshWindow()
	}
	now := s.clock()
	oauth := connection.Credentials.OAuth2
	expired := IsTokenExpired(connection.Credentials, now)

	if !expired && !IsTokenExpiringSoon(connection.Credentials, now, window) {
		access = tokenAccessFromOAuth(oauth, false)
		return access, nil
	}

	outcome, refreshErr := s.RefreshConnection(ctx, connection.ID)
	if refreshErr == nil {
		access = tokenAccessFromOAuth(outcome.Credentials.OAuth2, false)
		return access, nil
	}

	// Refresh failed. Hand back the stored token flagged as stale and let
	// the caller decide; the provider rejects it if it is truly dead.
	s.logError(ctx, "token refresh failed, returning stale token", map[string]any{
		"connection_id": connection.ID,
		"expired":       expired,
		"error":         refreshErr.Error(),
	})
	access = tokenAccessFromOAuth(oauth, true)
	return access, nil
}

// RefreshConnection exchanges the stored refresh token for fresh token
// material. The connection status only changes on success; a failed refresh
// leaves the stored row untouched so the caller can retry.
func (s *Service) RefreshConnection(ctx context.Context, connectionID string) (outcome RefreshOutcome, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"connection_id": connectionID,
	}
	defer func() {
		if outcome.Connection.IntegrationKey != "" {
			fields["integration_key"] = outcome.Connection.IntegrationKey
		}
		s.observeOperation(ctx, startedAt, "refresh_connection", err, fields)
	}()

	connection, err := s.loadConnection(ctx, connectionID)
	if err != nil {
		err = s.mapError(err)
		return RefreshOutcome{}, err
	}
	if connection.AuthScheme != AuthSchemeOAuth2 || connection.Credentials.OAuth2 == nil {
		err = s.mapError(fmt.Errorf("core: connection %s does not carry oauth2 credentials", connection.ID))
		return RefreshOutcome{}, err
	}
	refreshToken := strings.TrimSpace(connection.Credentials.OAuth2.RefreshToken)
	if refreshToken == "" {
		err = s.mapError(fmt.Errorf("%w: connection %s has no refresh token", ErrTokenExchange, connection.ID))
		return RefreshOutcome{}, err
	}

	providerCfg, err := s.providerConfig(connection.IntegrationKey)
	if err != nil {
		err = s.mapError(err)
		return RefreshOutcome{}, err
	}
	if s.tokenClient == nil {
		err = s.mapError(fmt.Errorf("core: token client is not configured"))
		return RefreshOutcome{}, err
	}

	grant, err := s.tokenClient.Exchange(ctx, providerCfg, TokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: refreshToken,
	})
	if err != nil {
		err = s.mapError(err)
		return RefreshOutcome{}, err
	}

	// Providers are allowed to omit the refresh token on rotation; keep the
	// old one so the connection stays refreshable.
	newRefreshToken := strings.TrimSpace(grant.RefreshToken)
	if newRefreshToken == "" {
		newRefreshToken = refreshToken
	}
	scope := strings.TrimSpace(grant.Scope)
	if scope == "" {
		scope = connection.Credentials.OAuth2.Scope
	}

	credentials := Credentials{
		Scheme: AuthSchemeOAuth2,
		OAuth2: &OAuth2Credentials{
			AccessToken:  grant.AccessToken,
			RefreshToken: newRefreshToken,
			TokenType:    grant.TokenType,
			Scope:        scope,
			ExpiresAt:    cloneTimePointer(grant.ExpiresAt),
		},
	}

	updated, err := s.connectionStore.Upsert(ctx, UpsertConnectionInput{
		IntegrationID:  connection.IntegrationID,
		IntegrationKey: connection.IntegrationKey,
		Owner:          connection.Owner,
		AuthScheme:     AuthSchemeOAuth2,
		Status:         ConnectionStatusActive,
		Credentials:    credentials,
		OAuthExpiresAt: cloneTimePointer(grant.ExpiresAt),
	})
	if err != nil {
		err = s.mapError(err)
		return RefreshOutcome{}, err
	}

	outcome = RefreshOutcome{Connection: updated, Credentials: credentials.Clone()}
	return outcome, nil
}

func tokenAccessFromOAuth(oauth *OAuth2Credentials, stale bool) TokenAccess {
	if oauth == nil {
		return TokenAccess{Stale: stale}
	}
	return TokenAccess{
		AccessToken: oauth.AccessToken,
		TokenType:   normalizeTokenType(oauth.TokenType),
		ExpiresAt:   cloneTimePointer(oauth.ExpiresAt),
		Stale:       stale,
	}
}
