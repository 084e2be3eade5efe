package harvest

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Credentials holds the identity used to authenticate every request.
type Credentials struct {
	Identity string
	secret   string
	basic    string
}

// NewCredentials computes the Basic-Auth value for identity and secret.
// Identities containing a colon and values containing line breaks cannot be
// expressed in a Basic credential and are rejected.
func NewCredentials(identity, secret string) (Credentials, error) {
	if identity == "" {
		return Credentials{}, fmt.Errorf("%w: empty identity", ErrInvalidCredentials)
	}
	if strings.Contains(identity, ":") {
		return Credentials{}, fmt.Errorf("%w: identity contains ':'", ErrInvalidCredentials)
	}
	if strings.ContainsAny(identity, "\r\n") || strings.ContainsAny(secret, "\r\n") {
		return Credentials{}, fmt.Errorf("%w: line break in identity or secret", ErrInvalidCredentials)
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(identity + ":" + secret))
	encoded = strings.NewReplacer("\r", "", "\n", "").Replace(encoded)

	return Credentials{Identity: identity, secret: secret, basic: encoded}, nil
}

// Basic returns the base64 credential without the "Basic " prefix.
func (c Credentials) Basic() string {
	return c.basic
}

// AuthorizationHeader returns the value for the Authorization header.
func (c Credentials) AuthorizationHeader() string {
	return "Basic " + c.basic
}

// String hides the secret.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Identity: %q}", c.Identity)
}

// TransportPreference is the ordered list of protocols still worth trying.
// It is consumed front to back and never replenished.
type TransportPreference struct {
	protocols []Protocol
}

// NewTransportPreference seeds [preferred, other]; secure selects HTTPS as
// the preferred protocol.
func NewTransportPreference(secure bool) TransportPreference {
	if secure {
		return TransportPreference{protocols: []Protocol{ProtocolHTTPS, ProtocolHTTP}}
	}
	return TransportPreference{protocols: []Protocol{ProtocolHTTP, ProtocolHTTPS}}
}

// Current returns the front protocol. ok is false once the list is exhausted.
func (tp *TransportPreference) Current() (Protocol, bool) {
	if len(tp.protocols) == 0 {
		return 0, false
	}
	return tp.protocols[0], true
}

// Pop drops the front protocol and reports whether any protocol remains.
func (tp *TransportPreference) Pop() bool {
	if len(tp.protocols) > 0 {
		tp.protocols = tp.protocols[1:]
	}
	return len(tp.protocols) > 0
}

// Len returns the number of protocols left.
func (tp *TransportPreference) Len() int {
	return len(tp.protocols)
}

// Remaining returns a copy of the protocols left, front first.
func (tp *TransportPreference) Remaining() []Protocol {
	out := make([]Protocol, len(tp.protocols))
	copy(out, tp.protocols)
	return out
}
