package core

import (
	"encoding/base64"
	"net/http"
	"net/url"
)

// AuthType represents the type of authentication.
type AuthType string

const (
	AuthTypeNone   AuthType = "none"
	AuthTypeBasic  AuthType = "basic"
	AuthTypeBearer AuthType = "bearer"
	AuthTypeAPIKey AuthType = "apikey"
)

// AuthTypeNames returns display names for auth types.
var AuthTypeNames = map[AuthType]string{
	AuthTypeNone:   "No Auth",
	AuthTypeBasic:  "Basic Auth",
	AuthTypeBearer: "Bearer Token",
	AuthTypeAPIKey: "API Key",
}

// APIKeyLocation specifies where to add the API key.
type APIKeyLocation string

const (
	APIKeyInHeader APIKeyLocation = "header"
	APIKeyInQuery  APIKeyLocation = "query"
)

// Auth is the authorization variant of a request definition.
// Only the fields belonging to Type are meaningful.
type Auth struct {
	Type     AuthType       `json:"type" yaml:"type"`
	Username string         `json:"username,omitempty" yaml:"username,omitempty"`
	Password string         `json:"password,omitempty" yaml:"password,omitempty"`
	Token    string         `json:"token,omitempty" yaml:"token,omitempty"`
	Key      string         `json:"key,omitempty" yaml:"key,omitempty"`
	Value    string         `json:"value,omitempty" yaml:"value,omitempty"`
	In       APIKeyLocation `json:"in,omitempty" yaml:"in,omitempty"`
}

// NoAuth returns the empty authorization variant.
func NoAuth() Auth {
	return Auth{Type: AuthTypeNone}
}

// NewBasicAuth creates basic auth.
func NewBasicAuth(username, password string) Auth {
	return Auth{Type: AuthTypeBasic, Username: username, Password: password}
}

// NewBearerAuth creates bearer token auth.
func NewBearerAuth(token string) Auth {
	return Auth{Type: AuthTypeBearer, Token: token}
}

// NewAPIKeyAuth creates API key auth.
func NewAPIKeyAuth(key, value string, in APIKeyLocation) Auth {
	return Auth{Type: AuthTypeAPIKey, Key: key, Value: value, In: in}
}

// IsConfigured reports whether the auth adds anything to a request.
func (a Auth) IsConfigured() bool {
	switch a.Type {
	case AuthTypeBasic:
		return a.Username != ""
	case AuthTypeBearer:
		return a.Token != ""
	case AuthTypeAPIKey:
		return a.Key != ""
	}
	return false
}

// Apply adds the credentials to the outgoing headers or query.
func (a Auth) Apply(headers http.Header, query url.Values) {
	if !a.IsConfigured() {
		return
	}

	switch a.Type {
	case AuthTypeBasic:
		credentials := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
		headers.Set("Authorization", "Basic "+credentials)

	case AuthTypeBearer:
		headers.Set("Authorization", "Bearer "+a.Token)

	case AuthTypeAPIKey:
		if a.In == APIKeyInQuery {
			query.Set(a.Key, a.Value)
		} else {
			headers.Set(a.Key, a.Value)
		}
	}
}

// DisplayName returns a human-readable name of the auth type.
func (a Auth) DisplayName() string {
	if name, ok := AuthTypeNames[a.Type]; ok {
		return name
	}
	return AuthTypeNames[AuthTypeNone]
}
