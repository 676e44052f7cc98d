package models

import (
	"time"

	"github.com/google/uuid"
)

// UnknownValue is the provider's sentinel for a field it could not determine.
// It is never treated as a real change.
const UnknownValue = "Unknown"

// DNS record types tracked per domain.
const (
	RecordTypeNS  = "NS"
	RecordTypeTXT = "TXT"
	RecordTypeMX  = "MX"
)

// Domain is one monitored domain owned by a user. Its lifecycle originates in
// the registration flow; the reconciliation pipeline only mutates the
// registrar link and the key dates.
type Domain struct {
	ID          uuid.UUID
	DomainName  string
	UserID      uuid.UUID
	RegistrarID uuid.UUID
	ExpiryDate  time.Time
	UpdatedDate time.Time
}

// Registrar rows are shared across domains, matched by case-insensitive name,
// and never deleted once orphaned.
type Registrar struct {
	ID   uuid.UUID
	Name string
	URL  string
}

// WhoisInfo is the singleton WHOIS record for a domain, upserted
// field-by-field.
type WhoisInfo struct {
	DomainID     uuid.UUID
	Name         string
	Organization string
	State        string
	City         string
	Country      string
	PostalCode   string
}

// DNSRecord has set semantics: unique per (domain, record type, lowercased
// value).
type DNSRecord struct {
	ID         uuid.UUID
	DomainID   uuid.UUID
	RecordType string
	Value      string
}

// IPAddress has set semantics analogous to DNSRecord, split by IP version.
type IPAddress struct {
	ID       uuid.UUID
	DomainID uuid.UUID
	Address  string
	IsIPv6   bool
}

// SSLCertificate is the singleton certificate record for a domain. All three
// fields are updated together when any of them changes.
type SSLCertificate struct {
	DomainID  uuid.UUID
	Issuer    string
	ValidFrom time.Time
	ValidTo   time.Time
}

// StatusCode is one EPP status (e.g. clientTransferProhibited) with set
// semantics.
type StatusCode struct {
	ID       uuid.UUID
	DomainID uuid.UUID
	Code     string
}

// DomainGraph is the full stored state for a domain, loaded in one call so
// the detector diffs against a consistent view.
type DomainGraph struct {
	Domain      Domain
	Registrar   Registrar
	Whois       WhoisInfo
	SSL         *SSLCertificate
	DNSRecords  []DNSRecord
	IPAddresses []IPAddress
	Statuses    []StatusCode
}

// ChangeType classifies an audit entry.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
	ChangeUpdated ChangeType = "updated"
)

// Change is one append-only audit record of a detected difference between
// stored and fetched domain data. Old/new values are recorded un-normalized.
type Change struct {
	ID         uuid.UUID
	DomainID   uuid.UUID
	UserID     uuid.UUID
	Field      string
	ChangeType ChangeType
	OldValue   string
	NewValue   string
	CreatedAt  time.Time
}

// Snapshot is the freshly fetched truth for one domain, as returned by the
// domain intelligence provider.
type Snapshot struct {
	Registrar   SnapshotRegistrar
	Whois       SnapshotWhois
	DNS         SnapshotDNS
	IPAddresses SnapshotIPs
	SSL         SnapshotSSL
	Statuses    []string
	Dates       SnapshotDates
}

type SnapshotRegistrar struct {
	Name string
	URL  string
}

type SnapshotWhois struct {
	Name         string
	Organization string
	State        string
	City         string
	Country      string
	PostalCode   string
}

type SnapshotDNS struct {
	NameServers []string
	TXTRecords  []string
	MXRecords   []string
}

type SnapshotIPs struct {
	IPv4 []string
	IPv6 []string
}

type SnapshotSSL struct {
	Issuer    string
	ValidFrom time.Time
	ValidTo   time.Time
}

type SnapshotDates struct {
	Expiry  time.Time
	Updated time.Time
}
