package harvest

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ServiceDomain is the parent domain of every account subdomain.
const ServiceDomain = "serviceapp.com"

// Connection is the live binding to the service over one protocol. It is
// rebuilt by value whenever the preferred protocol changes.
type Connection struct {
	Protocol Protocol
	Host     string
	Port     int

	httpClient *http.Client
}

// transportConfig is the part of the client configuration needed to build a
// Connection.
type transportConfig struct {
	subdomain          string
	hostOverride       string
	ports              map[Protocol]int
	insecureSkipVerify bool
	rootCAs            *x509.CertPool
	timeout            time.Duration
	baseTransport      *http.Transport
}

func (tc transportConfig) host() string {
	if tc.hostOverride != "" {
		return tc.hostOverride
	}
	return tc.subdomain + "." + ServiceDomain
}

// newConnection binds a fresh http.Client to proto. Redirects are returned to
// the caller instead of being followed so the pipeline can classify them.
func newConnection(proto Protocol, tc transportConfig) Connection {
	port := proto.DefaultPort()
	if p, ok := tc.ports[proto]; ok && p > 0 {
		port = p
	}

	var transport *http.Transport
	if tc.baseTransport != nil {
		transport = tc.baseTransport.Clone()
	} else {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	if proto == ProtocolHTTPS {
		transport.TLSClientConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: tc.insecureSkipVerify, //nolint:gosec // opt-in via WithInsecureSkipVerify
			RootCAs:            tc.rootCAs,
		}
	}

	return Connection{
		Protocol: proto,
		Host:     tc.host(),
		Port:     port,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   tc.timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Address returns host:port, omitting the port when it is the protocol default.
func (c Connection) Address() string {
	if c.Port == c.Protocol.DefaultPort() {
		return c.Host
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL resolves path against the connection.
func (c Connection) URL(path string) *url.URL {
	u := &url.URL{Scheme: c.Protocol.Scheme(), Host: c.Address()}
	if ref, err := url.Parse(path); err == nil {
		u.Path = ref.Path
		u.RawQuery = ref.RawQuery
	} else {
		u.Path = path
	}
	return u
}

func (c Connection) close() {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
}
