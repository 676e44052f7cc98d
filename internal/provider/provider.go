// Package provider fetches live domain intelligence from the upstream
// lookup API and maps it onto the internal snapshot shape.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"domainwatch/internal/monitor/models"
	"domainwatch/internal/platform/metrics"
	derrors "domainwatch/pkg/domain-errors"
	platformstrings "domainwatch/pkg/platform/strings"
)

// Client calls the domain lookup API. A single POST returns registrar,
// WHOIS, DNS, IP, SSL, status and date information for one domain.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 5 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// lookupResponse mirrors the upstream payload. Fields the pipeline does
// not consume are left undeclared and dropped during decoding.
type lookupResponse struct {
	DomainInfo struct {
		Registrar struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"registrar"`
		Whois struct {
			Name         string `json:"name"`
			Organization string `json:"organization"`
			State        string `json:"stateProvince"`
			City         string `json:"city"`
			Country      string `json:"country"`
			PostalCode   string `json:"postalCode"`
		} `json:"whois"`
		DNS struct {
			NameServers []string `json:"nameServers"`
			TXTRecords  []string `json:"txtRecords"`
			MXRecords   []string `json:"mxRecords"`
		} `json:"dns"`
		IPAddresses struct {
			IPv4 []string `json:"ipv4"`
			IPv6 []string `json:"ipv6"`
		} `json:"ipAddresses"`
		SSL struct {
			Issuer    string    `json:"issuer"`
			ValidFrom time.Time `json:"validFrom"`
			ValidTo   time.Time `json:"validTo"`
		} `json:"ssl"`
		Status []string `json:"status"`
		Dates  struct {
			Expiry  time.Time `json:"expiryDate"`
			Updated time.Time `json:"updatedDate"`
		} `json:"dates"`
	} `json:"domainInfo"`
}

// Fetch retrieves the current upstream view of a domain. Transport
// failures and non-2xx responses surface as upstream errors so callers
// can distinguish them from persistence faults.
func (c *Client) Fetch(ctx context.Context, domain string) (models.Snapshot, error) {
	start := time.Now()

	body, err := json.Marshal(map[string]string{"domain": domain})
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("marshal lookup request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("build lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Snapshot{}, derrors.Wrap(err, derrors.CodeUpstream, "domain lookup request failed")
	}
	defer resp.Body.Close()

	c.metrics.ObserveProviderFetch(time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		c.logger.WarnContext(ctx, "domain lookup returned error status",
			"domain", domain, "status", resp.StatusCode, "body", string(snippet))
		return models.Snapshot{}, derrors.New(derrors.CodeUpstream,
			fmt.Sprintf("domain lookup returned status %d", resp.StatusCode))
	}

	var payload lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return models.Snapshot{}, derrors.Wrap(err, derrors.CodeUpstream, "decode domain lookup response")
	}

	// Upstream lists arrive with inconsistent spacing and the occasional
	// duplicate. Hostnames and addresses are case-insensitive and stored
	// lowercase; TXT values and status codes keep their case.
	info := payload.DomainInfo
	snap := models.Snapshot{
		Statuses: platformstrings.DedupeAndTrim(info.Status),
	}
	snap.Registrar.Name = info.Registrar.Name
	snap.Registrar.URL = info.Registrar.URL
	snap.Whois.Name = info.Whois.Name
	snap.Whois.Organization = info.Whois.Organization
	snap.Whois.State = info.Whois.State
	snap.Whois.City = info.Whois.City
	snap.Whois.Country = info.Whois.Country
	snap.Whois.PostalCode = info.Whois.PostalCode
	snap.DNS.NameServers = platformstrings.DedupeAndTrimLower(info.DNS.NameServers)
	snap.DNS.TXTRecords = platformstrings.DedupeAndTrim(info.DNS.TXTRecords)
	snap.DNS.MXRecords = platformstrings.DedupeAndTrim(info.DNS.MXRecords)
	snap.IPAddresses.IPv4 = platformstrings.DedupeAndTrimLower(info.IPAddresses.IPv4)
	snap.IPAddresses.IPv6 = platformstrings.DedupeAndTrimLower(info.IPAddresses.IPv6)
	snap.SSL.Issuer = info.SSL.Issuer
	snap.SSL.ValidFrom = info.SSL.ValidFrom
	snap.SSL.ValidTo = info.SSL.ValidTo
	snap.Dates.Expiry = info.Dates.Expiry
	snap.Dates.Updated = info.Dates.Updated
	return snap, nil
}
