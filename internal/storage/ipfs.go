// Package storage uploads publication metadata to an IPFS HTTP API.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"

	"github.com/lenspost/lenspost/internal/logging"
)

// ErrUpload is returned when content cannot be added to IPFS.
var ErrUpload = errors.New("ipfs upload failed")

// Config configures the IPFS client.
type Config struct {
	// APIAddr is an HTTP(S) URL or a multiaddr of the IPFS API.
	APIAddr string
	// ProjectID and ProjectSecret enable basic auth for hosted gateways.
	ProjectID     string
	ProjectSecret string
	// Pin pins added content.
	Pin     bool
	Timeout time.Duration
}

// Client wraps the IPFS API shell.
type Client struct {
	sh      *shell.Shell
	apiURL  string
	pin     bool
	hasAuth bool
}

// basicAuthTransport adds basic credentials to every request.
type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(clone)
}

// NewClient creates a client for cfg.APIAddr.
func NewClient(cfg Config) (*Client, error) {
	apiURL, err := NormalizeAPIAddr(cfg.APIAddr)
	if err != nil {
		return nil, err
	}

	var transport http.RoundTripper = http.DefaultTransport
	hasAuth := cfg.ProjectID != "" || cfg.ProjectSecret != ""
	if hasAuth {
		transport = &basicAuthTransport{
			username: cfg.ProjectID,
			password: cfg.ProjectSecret,
			base:     transport,
		}
	}

	sh := shell.NewShellWithClient(apiURL, &http.Client{Transport: transport})
	if cfg.Timeout > 0 {
		sh.SetTimeout(cfg.Timeout)
	}

	return &Client{sh: sh, apiURL: apiURL, pin: cfg.Pin, hasAuth: hasAuth}, nil
}

// APIURL returns the resolved API base URL.
func (c *Client) APIURL() string {
	return c.apiURL
}

// Add uploads r and returns its CID.
func (c *Client) Add(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	start := time.Now()
	cid, err := c.sh.Add(r, shell.Pin(c.pin))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}

	logging.Debug("content added to IPFS",
		logging.Component("storage"),
		"cid", cid,
		"pinned", c.pin,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return cid, nil
}

// AddJSON uploads the JSON encoding of v and returns its CID.
func (c *Client) AddJSON(ctx context.Context, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal content: %w", err)
	}
	return c.Add(ctx, bytes.NewReader(data))
}

// Version returns the version reported by the IPFS API.
func (c *Client) Version(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	version, _, err := c.sh.Version()
	if err != nil {
		return "", fmt.Errorf("failed to reach IPFS API: %w", err)
	}
	return version, nil
}

// ContentURI returns the ipfs:// URI of cid.
func ContentURI(cid string) string {
	return "ipfs://" + cid
}

// NormalizeAPIAddr turns an HTTP(S) URL or a multiaddr such as
// /dns4/ipfs.infura.io/tcp/5001/https into a base URL.
func NormalizeAPIAddr(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", errors.New("empty IPFS API address")
	}

	if !strings.HasPrefix(addr, "/") {
		u, err := url.Parse(addr)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return "", fmt.Errorf("invalid IPFS API URL %q", addr)
		}
		return strings.TrimRight(addr, "/"), nil
	}

	scheme := "http"
	switch {
	case strings.HasSuffix(addr, "/https"):
		scheme = "https"
		addr = strings.TrimSuffix(addr, "/https")
	case strings.HasSuffix(addr, "/http"):
		addr = strings.TrimSuffix(addr, "/http")
	}

	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return "", fmt.Errorf("invalid IPFS API multiaddr %q: %w", addr, err)
	}
	_, host, err := manet.DialArgs(m)
	if err != nil {
		return "", fmt.Errorf("unsupported IPFS API multiaddr %q: %w", addr, err)
	}
	return scheme + "://" + host, nil
}
