package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "domainwatch/pkg/domain-errors"
)

const lookupPayload = `{
	"domainInfo": {
		"registrar": {"name": "GoDaddy", "url": "https://godaddy.com"},
		"whois": {
			"name": "Jane Doe",
			"organization": "Example Org",
			"stateProvince": "CA",
			"city": "San Francisco",
			"country": "US",
			"postalCode": "94105"
		},
		"dns": {
			"nameServers": ["ns1.example.net", "ns2.example.net"],
			"txtRecords": ["v=spf1 -all"],
			"mxRecords": ["10 mail.example.com"]
		},
		"ipAddresses": {"ipv4": ["192.0.2.1"], "ipv6": ["2001:db8::1"]},
		"ssl": {
			"issuer": "Let's Encrypt",
			"validFrom": "2026-06-01T00:00:00Z",
			"validTo": "2026-09-01T00:00:00Z"
		},
		"status": ["clientTransferProhibited"],
		"dates": {
			"expiryDate": "2027-03-15T00:00:00Z",
			"updatedDate": "2026-01-10T00:00:00Z"
		}
	}
}`

func TestFetchDecodesNestedPayload(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(lookupPayload))
	}))
	defer server.Close()

	client := NewClient(server.URL, "api-key")
	snap, err := client.Fetch(context.Background(), "example.com")
	require.NoError(t, err)

	assert.Equal(t, "Basic api-key", gotAuth)
	assert.Equal(t, map[string]string{"domain": "example.com"}, gotBody)

	assert.Equal(t, "GoDaddy", snap.Registrar.Name)
	assert.Equal(t, "CA", snap.Whois.State)
	assert.Equal(t, []string{"ns1.example.net", "ns2.example.net"}, snap.DNS.NameServers)
	assert.Equal(t, []string{"2001:db8::1"}, snap.IPAddresses.IPv6)
	assert.Equal(t, "Let's Encrypt", snap.SSL.Issuer)
	assert.Equal(t, []string{"clientTransferProhibited"}, snap.Statuses)
	assert.True(t, snap.Dates.Expiry.Equal(time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC)))
}

func TestFetchSanitizesLists(t *testing.T) {
	payload := `{
		"domainInfo": {
			"dns": {
				"nameServers": ["  NS1.Example.NET ", "ns1.example.net", ""],
				"txtRecords": ["  v=SPF1 -all ", "v=SPF1 -all"]
			},
			"ipAddresses": {"ipv6": ["2001:DB8::1", "2001:db8::1"]},
			"status": [" clientTransferProhibited", "clientTransferProhibited"]
		}
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	client := NewClient(server.URL, "api-key")
	snap, err := client.Fetch(context.Background(), "example.com")
	require.NoError(t, err)

	assert.Equal(t, []string{"ns1.example.net"}, snap.DNS.NameServers)
	assert.Equal(t, []string{"v=SPF1 -all"}, snap.DNS.TXTRecords, "txt record case is significant")
	assert.Equal(t, []string{"2001:db8::1"}, snap.IPAddresses.IPv6)
	assert.Equal(t, []string{"clientTransferProhibited"}, snap.Statuses)
}

func TestFetchErrorStatusIsUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "api-key")
	_, err := client.Fetch(context.Background(), "example.com")
	require.Error(t, err)
	assert.True(t, derrors.HasCode(err, derrors.CodeUpstream))
}

func TestFetchTransportFailureIsUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, "api-key")
	_, err := client.Fetch(context.Background(), "example.com")
	require.Error(t, err)
	assert.True(t, derrors.HasCode(err, derrors.CodeUpstream))
}

func TestFetchMalformedBodyIsUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "api-key")
	_, err := client.Fetch(context.Background(), "example.com")
	require.Error(t, err)
	assert.True(t, derrors.HasCode(err, derrors.CodeUpstream))
}

func TestFetchHonorsTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	client := NewClient(server.URL, "api-key", WithTimeout(50*time.Millisecond))
	_, err := client.Fetch(context.Background(), "example.com")
	require.Error(t, err)
	assert.True(t, derrors.HasCode(err, derrors.CodeUpstream))
}
