// Package detector diffs a freshly fetched domain snapshot against the stored
// entity graph, applying mutations and appending one audit entry per detected
// change.
package detector

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"domainwatch/internal/monitor/models"
	"domainwatch/internal/monitor/store"
	"domainwatch/internal/platform/metrics"
)

// Store is the subset of the domain store the detector mutates.
type Store interface {
	FindRegistrarByName(ctx context.Context, name string) (*models.Registrar, error)
	CreateRegistrar(ctx context.Context, registrar *models.Registrar) error
	SetDomainRegistrar(ctx context.Context, domainID, registrarID uuid.UUID) error
	UpsertWhoisField(ctx context.Context, domainID uuid.UUID, column, value string) error
	InsertDNSRecord(ctx context.Context, record *models.DNSRecord) error
	DeleteDNSRecord(ctx context.Context, id uuid.UUID) error
	InsertIPAddress(ctx context.Context, ip *models.IPAddress) error
	DeleteIPAddress(ctx context.Context, id uuid.UUID) error
	InsertSSL(ctx context.Context, cert *models.SSLCertificate) error
	UpdateSSL(ctx context.Context, cert *models.SSLCertificate) error
	InsertStatus(ctx context.Context, status *models.StatusCode) error
	DeleteStatus(ctx context.Context, id uuid.UUID) error
	UpdateDomainExpiry(ctx context.Context, domainID uuid.UUID, expiry time.Time) error
	UpdateDomainUpdated(ctx context.Context, domainID uuid.UUID, updated time.Time) error
}

// ChangeLog appends audit entries.
type ChangeLog interface {
	Append(ctx context.Context, change models.Change) error
}

// ChangeSink receives each change synchronously after it has been persisted.
// The notification policy engine implements this; sink failures are logged
// and never fail the reconciliation.
type ChangeSink interface {
	HandleChange(ctx context.Context, change models.Change) error
}

// Publisher fans persisted changes out to an event stream. Optional; publish
// failures are logged only.
type Publisher interface {
	PublishChange(ctx context.Context, change models.Change) error
}

// Detector diffs snapshots against stored state.
type Detector struct {
	store     Store
	changes   ChangeLog
	sink      ChangeSink
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Detector)

func WithChangeSink(sink ChangeSink) Option {
	return func(d *Detector) { d.sink = sink }
}

func WithPublisher(publisher Publisher) Option {
	return func(d *Detector) { d.publisher = publisher }
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) { d.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Detector) { d.metrics = m }
}

// New constructs a Detector.
func New(store Store, changes ChangeLog, opts ...Option) *Detector {
	d := &Detector{store: store, changes: changes, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run diffs the snapshot against the stored graph in a fixed category order:
// registrar, whois, DNS (NS, TXT, MX), IP (v4, v6), SSL, status codes, dates.
// It returns the number of changes recorded. A persistence error aborts the
// remaining categories; changes already written stay in place.
func (d *Detector) Run(ctx context.Context, graph *models.DomainGraph, snap models.Snapshot) (int, error) {
	count := 0
	if err := d.diffRegistrar(ctx, graph, snap, &count); err != nil {
		return count, err
	}
	if err := d.diffWhois(ctx, graph, snap, &count); err != nil {
		return count, err
	}
	if err := d.diffDNS(ctx, graph, snap, &count); err != nil {
		return count, err
	}
	if err := d.diffIPs(ctx, graph, snap, &count); err != nil {
		return count, err
	}
	if err := d.diffSSL(ctx, graph, snap, &count); err != nil {
		return count, err
	}
	if err := d.diffStatuses(ctx, graph, snap, &count); err != nil {
		return count, err
	}
	if err := d.diffDates(ctx, graph, snap, &count); err != nil {
		return count, err
	}
	return count, nil
}

func (d *Detector) diffRegistrar(ctx context.Context, graph *models.DomainGraph, snap models.Snapshot, count *int) error {
	if !scalarDiffers(graph.Registrar.Name, snap.Registrar.Name) {
		return nil
	}

	registrar, err := d.store.FindRegistrarByName(ctx, snap.Registrar.Name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		registrar = &models.Registrar{Name: snap.Registrar.Name, URL: snap.Registrar.URL}
		if err := d.store.CreateRegistrar(ctx, registrar); err != nil {
			return err
		}
	case err != nil:
		return err
	}
	if err := d.store.SetDomainRegistrar(ctx, graph.Domain.ID, registrar.ID); err != nil {
		return err
	}

	return d.record(ctx, graph, "registrar", models.ChangeUpdated, graph.Registrar.Name, snap.Registrar.Name, count)
}

// whoisFields pairs snapshot accessors with their storage column, in the
// fixed processing order.
var whoisFields = []struct {
	column string
	value  func(models.SnapshotWhois) string
	stored func(models.WhoisInfo) string
}{
	{"name", func(w models.SnapshotWhois) string { return w.Name }, func(w models.WhoisInfo) string { return w.Name }},
	{"organization", func(w models.SnapshotWhois) string { return w.Organization }, func(w models.WhoisInfo) string { return w.Organization }},
	{"state", func(w models.SnapshotWhois) string { return w.State }, func(w models.WhoisInfo) string { return w.State }},
	{"city", func(w models.SnapshotWhois) string { return w.City }, func(w models.WhoisInfo) string { return w.City }},
	{"country", func(w models.SnapshotWhois) string { return w.Country }, func(w models.WhoisInfo) string { return w.Country }},
	{"postal_code", func(w models.SnapshotWhois) string { return w.PostalCode }, func(w models.WhoisInfo) string { return w.PostalCode }},
}

func (d *Detector) diffWhois(ctx context.Context, graph *models.DomainGraph, snap models.Snapshot, count *int) error {
	for _, f := range whoisFields {
		oldValue := f.stored(graph.Whois)
		newValue := f.value(snap.Whois)
		if !scalarDiffers(oldValue, newValue) {
			continue
		}
		if err := d.store.UpsertWhoisField(ctx, graph.Domain.ID, f.column, newValue); err != nil {
			return err
		}
		if err := d.record(ctx, graph, "whois_"+f.column, models.ChangeUpdated, oldValue, newValue, count); err != nil {
			return err
		}
	}
	return nil
}

func (d *Detector) diffDNS(ctx context.Context, graph *models.DomainGraph, snap models.Snapshot, count *int) error {
	categories := []struct {
		recordType string
		field      string
		fetched    []string
	}{
		{models.RecordTypeNS, "dns_ns", snap.DNS.NameServers},
		{models.RecordTypeTXT, "dns_txt", snap.DNS.TXTRecords},
		{models.RecordTypeMX, "dns_mx", snap.DNS.MXRecords},
	}

	for _, cat := range categories {
		var current []models.DNSRecord
		for _, r := range graph.DNSRecords {
			if r.RecordType == cat.recordType {
				current = append(current, r)
			}
		}

		added, removed := diffSets(cat.fetched, current, func(r models.DNSRecord) string { return r.Value })

		for _, value := range added {
			record := &models.DNSRecord{DomainID: graph.Domain.ID, RecordType: cat.recordType, Value: value}
			if err := d.store.InsertDNSRecord(ctx, record); err != nil {
				return err
			}
			if err := d.record(ctx, graph, cat.field, models.ChangeAdded, "", value, count); err != nil {
				return err
			}
		}
		for _, r := range removed {
			if err := d.store.DeleteDNSRecord(ctx, r.ID); err != nil {
				return err
			}
			if err := d.record(ctx, graph, cat.field, models.ChangeRemoved, r.Value, "", count); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Detector) diffIPs(ctx context.Context, graph *models.DomainGraph, snap models.Snapshot, count *int) error {
	categories := []struct {
		isIPv6  bool
		field   string
		fetched []string
	}{
		{false, "ip_ipv4", snap.IPAddresses.IPv4},
		{true, "ip_ipv6", snap.IPAddresses.IPv6},
	}

	for _, cat := range categories {
		var current []models.IPAddress
		for _, ip := range graph.IPAddresses {
			if ip.IsIPv6 == cat.isIPv6 {
				current = append(current, ip)
			}
		}

		added, removed := diffSets(cat.fetched, current, func(ip models.IPAddress) string { return ip.Address })

		for _, addr := range added {
			ip := &models.IPAddress{DomainID: graph.Domain.ID, Address: addr, IsIPv6: cat.isIPv6}
			if err := d.store.InsertIPAddress(ctx, ip); err != nil {
				return err
			}
			if err := d.record(ctx, graph, cat.field, models.ChangeAdded, "", addr, count); err != nil {
				return err
			}
		}
		for _, ip := range removed {
			if err := d.store.DeleteIPAddress(ctx, ip.ID); err != nil {
				return err
			}
			if err := d.record(ctx, graph, cat.field, models.ChangeRemoved, ip.Address, "", count); err != nil {
				return err
			}
		}
	}
	return nil
}

// diffSSL applies the intentionally coarse certificate rule: when any of
// issuer or validity dates differs, a single ssl_issuer change is recorded
// and all three stored fields are updated together.
func (d *Detector) diffSSL(ctx context.Context, graph *models.DomainGraph, snap models.Snapshot, count *int) error {
	if snap.SSL.Issuer == "" || snap.SSL.Issuer == models.UnknownValue {
		return nil
	}

	fetched := &models.SSLCertificate{
		DomainID:  graph.Domain.ID,
		Issuer:    snap.SSL.Issuer,
		ValidFrom: snap.SSL.ValidFrom,
		ValidTo:   snap.SSL.ValidTo,
	}

	if graph.SSL == nil {
		return d.store.InsertSSL(ctx, fetched)
	}

	if strings.EqualFold(graph.SSL.Issuer, snap.SSL.Issuer) &&
		sameDay(graph.SSL.ValidFrom, snap.SSL.ValidFrom) &&
		sameDay(graph.SSL.ValidTo, snap.SSL.ValidTo) {
		return nil
	}

	if err := d.store.UpdateSSL(ctx, fetched); err != nil {
		return err
	}
	return d.record(ctx, graph, "ssl_issuer", models.ChangeUpdated, graph.SSL.Issuer, snap.SSL.Issuer, count)
}

func (d *Detector) diffStatuses(ctx context.Context, graph *models.DomainGraph, snap models.Snapshot, count *int) error {
	added, removed := diffSets(snap.Statuses, graph.Statuses, func(s models.StatusCode) string { return s.Code })

	for _, code := range added {
		status := &models.StatusCode{DomainID: graph.Domain.ID, Code: code}
		if err := d.store.InsertStatus(ctx, status); err != nil {
			return err
		}
		if err := d.record(ctx, graph, "status", models.ChangeAdded, "", code, count); err != nil {
			return err
		}
	}
	for _, s := range removed {
		if err := d.store.DeleteStatus(ctx, s.ID); err != nil {
			return err
		}
		if err := d.record(ctx, graph, "status", models.ChangeRemoved, s.Code, "", count); err != nil {
			return err
		}
	}
	return nil
}

func (d *Detector) diffDates(ctx context.Context, graph *models.DomainGraph, snap models.Snapshot, count *int) error {
	if !snap.Dates.Expiry.IsZero() && !sameDay(graph.Domain.ExpiryDate, snap.Dates.Expiry) {
		if err := d.store.UpdateDomainExpiry(ctx, graph.Domain.ID, snap.Dates.Expiry); err != nil {
			return err
		}
		err := d.record(ctx, graph, "dates_expiry", models.ChangeUpdated,
			formatDate(graph.Domain.ExpiryDate), formatDate(snap.Dates.Expiry), count)
		if err != nil {
			return err
		}
	}
	if !snap.Dates.Updated.IsZero() && !sameDay(graph.Domain.UpdatedDate, snap.Dates.Updated) {
		if err := d.store.UpdateDomainUpdated(ctx, graph.Domain.ID, snap.Dates.Updated); err != nil {
			return err
		}
		err := d.record(ctx, graph, "dates_updated", models.ChangeUpdated,
			formatDate(graph.Domain.UpdatedDate), formatDate(snap.Dates.Updated), count)
		if err != nil {
			return err
		}
	}
	return nil
}

// record appends the change, then hands it synchronously to the notification
// sink and the event publisher. Sink and publisher failures are logged but do
// not fail the reconciliation; only change-log persistence does.
func (d *Detector) record(ctx context.Context, graph *models.DomainGraph, field string, kind models.ChangeType, oldValue, newValue string, count *int) error {
	change := models.Change{
		ID:         uuid.New(),
		DomainID:   graph.Domain.ID,
		UserID:     graph.Domain.UserID,
		Field:      field,
		ChangeType: kind,
		OldValue:   oldValue,
		NewValue:   newValue,
		CreatedAt:  time.Now(),
	}
	if err := d.changes.Append(ctx, change); err != nil {
		return err
	}
	*count++
	d.metrics.ObserveChange(field)
	d.logger.InfoContext(ctx, "domain change recorded",
		"domain_id", change.DomainID,
		"field", field,
		"change_type", kind,
	)

	if d.sink != nil {
		if err := d.sink.HandleChange(ctx, change); err != nil {
			d.logger.ErrorContext(ctx, "notification sink failed", "field", field, "error", err)
		}
	}
	if d.publisher != nil {
		if err := d.publisher.PublishChange(ctx, change); err != nil {
			d.logger.ErrorContext(ctx, "change publish failed", "field", field, "error", err)
		}
	}
	return nil
}

// scalarDiffers reports whether a scalar field changed after normalization.
// The Unknown sentinel means the provider could not determine the field and
// never counts as a change.
func scalarDiffers(oldValue, newValue string) bool {
	if newValue == models.UnknownValue {
		return false
	}
	return normalize(oldValue) != normalize(newValue)
}

// diffSets computes the added and removed elements between the fetched values
// and the current rows, comparing normalized values. Added elements are
// returned normalized (they are stored that way); removed elements are the
// stored rows themselves.
func diffSets[T any](fetched []string, current []T, value func(T) string) (added []string, removed []T) {
	fetchedSet := make(map[string]bool, len(fetched))
	for _, v := range fetched {
		if v == "" || v == models.UnknownValue {
			continue
		}
		fetchedSet[normalize(v)] = true
	}
	currentSet := make(map[string]bool, len(current))
	for _, row := range current {
		currentSet[normalize(value(row))] = true
	}

	for _, v := range fetched {
		norm := normalize(v)
		if norm == "" || v == models.UnknownValue || currentSet[norm] {
			continue
		}
		if !containsString(added, norm) {
			added = append(added, norm)
		}
	}
	for _, row := range current {
		if !fetchedSet[normalize(value(row))] {
			removed = append(removed, row)
		}
	}
	return added, removed
}

func containsString(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// sameDay compares two timestamps by calendar day in UTC, ignoring
// time-of-day and zone.
func sameDay(a, b time.Time) bool {
	if a.IsZero() != b.IsZero() {
		return false
	}
	return a.UTC().Format(time.DateOnly) == b.UTC().Format(time.DateOnly)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}
