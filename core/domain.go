package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidOwnerRef                   = errors.New("core: invalid owner reference")
	ErrInvalidAuthScheme                 = errors.New("core: invalid auth scheme")
	ErrInvalidConnectionStatusTransition = errors.New("core: invalid connection status transition")
)

type OwnerType string

const (
	OwnerTypeUser OwnerType = "user"
)

// OwnerRef identifies the principal that owns or is granted access to a
// connection. Only user owners are supported; the type tag keeps the
// reference extensible without widening call sites.
type OwnerRef struct {
	Type OwnerType
	ID   string
}

func UserRef(id string) OwnerRef {
	return OwnerRef{Type: OwnerTypeUser, ID: strings.TrimSpace(id)}
}

func (o OwnerRef) Validate() error {
	t := OwnerType(strings.TrimSpace(strings.ToLower(string(o.Type))))
	if t != OwnerTypeUser {
		return fmt.Errorf("%w: %q", ErrInvalidOwnerRef, o.Type)
	}
	if strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidOwnerRef)
	}
	return nil
}

func (o OwnerRef) Equal(other OwnerRef) bool {
	return strings.EqualFold(strings.TrimSpace(string(o.Type)), strings.TrimSpace(string(other.Type))) &&
		strings.TrimSpace(o.ID) == strings.TrimSpace(other.ID)
}

func (o OwnerRef) IsZero() bool {
	return strings.TrimSpace(string(o.Type)) == "" && strings.TrimSpace(o.ID) == ""
}

type AuthScheme string

const (
	AuthSchemeOAuth2 AuthScheme = "oauth2"
	AuthSchemeAPIKey AuthScheme = "api_key"
	AuthSchemeBasic  AuthScheme = "basic"
	AuthSchemeBearer AuthScheme = "bearer"
	AuthSchemeCustom AuthScheme = "custom"
)

func ParseAuthScheme(value string) (AuthScheme, error) {
	scheme := AuthScheme(strings.TrimSpace(strings.ToLower(value)))
	switch scheme {
	case AuthSchemeOAuth2, AuthSchemeAPIKey, AuthSchemeBasic, AuthSchemeBearer, AuthSchemeCustom:
		return scheme, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAuthScheme, value)
	}
}

type ConnectionStatus string

const (
	ConnectionStatusDraft    ConnectionStatus = "draft"
	ConnectionStatusActive   ConnectionStatus = "active"
	ConnectionStatusDisabled ConnectionStatus = "disabled"
	ConnectionStatusError    ConnectionStatus = "error"
)

// Integration is a catalog entry for a third-party service the platform can
// connect to. Entries are reference data seeded by migration and toggled via
// the enabled flag.
type Integration struct {
	ID                   string
	Key                  string
	Name                 string
	Enabled              bool
	SupportedAuthSchemes []AuthScheme
	Metadata             map[string]any
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Connection binds an integration to an owning user together with the
// credential material needed to call the third party. At most one live
// connection exists per (integration, owner) pair.
type Connection struct {
	ID             string
	IntegrationID  string
	IntegrationKey string
	Owner          OwnerRef
	AuthScheme     AuthScheme
	Status         ConnectionStatus
	Credentials    Credentials
	LastError      string
	LastTestedAt   *time.Time
	// OAuthExpiresAt mirrors the oauth credential expiry outside the
	// encrypted payload so stores can select expiring connections.
	OAuthExpiresAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (c *Connection) TransitionTo(status ConnectionStatus, reason string, now time.Time) error {
	if c == nil {
		return nil
	}
	if c.Status == status {
		c.UpdatedAt = now
		if strings.TrimSpace(reason) != "" {
			c.LastError = strings.TrimSpace(reason)
		}
		return nil
	}
	if !connectionTransitionAllowed(c.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidConnectionStatusTransition, c.Status, status)
	}
	c.Status = status
	c.UpdatedAt = now
	if strings.TrimSpace(reason) != "" {
		c.LastError = strings.TrimSpace(reason)
	}
	if status == ConnectionStatusActive {
		c.LastError = ""
	}
	return nil
}

func connectionTransitionAllowed(current, next ConnectionStatus) bool {
	allowed := map[ConnectionStatus]map[ConnectionStatus]struct{}{
		ConnectionStatusDraft: {
			ConnectionStatusActive:   {},
			ConnectionStatusDisabled: {},
			ConnectionStatusError:    {},
		},
		ConnectionStatusActive: {
			ConnectionStatusDisabled: {},
			ConnectionStatusError:    {},
		},
		ConnectionStatusDisabled: {
			ConnectionStatusActive: {},
		},
		ConnectionStatusError: {
			ConnectionStatusActive:   {},
			ConnectionStatusDisabled: {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

// Grant lets a non-owner user exercise a connection. Grants never confer
// management rights; those stay with the owner.
type Grant struct {
	ID           string
	ConnectionID string
	Grantee      OwnerRef
	Permissions  map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
