package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/haldorsen/norn/internal/cache"
	"github.com/haldorsen/norn/internal/domain"
	"github.com/haldorsen/norn/internal/repository"
)

// fakeRepo is an in-memory repository.Repository. ExecTx runs fn against
// the fake itself, snapshotting all state first and restoring it when fn
// fails, so rollback semantics hold. Tests that need transactional
// failure inject errors per method.
type fakeRepo struct {
	mu sync.Mutex

	invoices     map[uuid.UUID]*domain.Invoice
	invoiceOrder []uuid.UUID
	payments     map[uuid.UUID]*domain.Payment
	paymentOrder []uuid.UUID
	templates    map[uuid.UUID]*domain.InvoiceTemplate
	recurring    map[uuid.UUID]*domain.RecurringInvoice
	reminders    []domain.Reminder
	audit        []domain.AuditEntry
	exports      map[uuid.UUID]*domain.InvoiceExport
	exportOrder  []uuid.UUID
	settings     *domain.InvoiceSettings

	summary *domain.InvoiceSummaryStats
	aging   []domain.AgingBucket
	revenue []domain.RevenuePoint

	createInvoiceErr error
	updateInvoiceErr error
	auditErr         error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		invoices:  make(map[uuid.UUID]*domain.Invoice),
		payments:  make(map[uuid.UUID]*domain.Payment),
		templates: make(map[uuid.UUID]*domain.InvoiceTemplate),
		recurring: make(map[uuid.UUID]*domain.RecurringInvoice),
		exports:   make(map[uuid.UUID]*domain.InvoiceExport),
	}
}

func (f *fakeRepo) ExecTx(ctx context.Context, fn func(q repository.Querier) error) error {
	snap := f.snapshot()
	if err := fn(f); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

// repoSnapshot captures every mutable collection of the fake.
type repoSnapshot struct {
	invoices     map[uuid.UUID]*domain.Invoice
	invoiceOrder []uuid.UUID
	payments     map[uuid.UUID]*domain.Payment
	paymentOrder []uuid.UUID
	templates    map[uuid.UUID]*domain.InvoiceTemplate
	recurring    map[uuid.UUID]*domain.RecurringInvoice
	reminders    []domain.Reminder
	audit        []domain.AuditEntry
	exports      map[uuid.UUID]*domain.InvoiceExport
	exportOrder  []uuid.UUID
	settings     *domain.InvoiceSettings
}

func cloneMap[K comparable, V any](m map[K]*V) map[K]*V {
	out := make(map[K]*V, len(m))
	for k, v := range m {
		cp := *v
		out[k] = &cp
	}
	return out
}

func (f *fakeRepo) snapshot() repoSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := repoSnapshot{
		invoices:     cloneMap(f.invoices),
		invoiceOrder: append([]uuid.UUID(nil), f.invoiceOrder...),
		payments:     cloneMap(f.payments),
		paymentOrder: append([]uuid.UUID(nil), f.paymentOrder...),
		templates:    cloneMap(f.templates),
		recurring:    cloneMap(f.recurring),
		reminders:    append([]domain.Reminder(nil), f.reminders...),
		audit:        append([]domain.AuditEntry(nil), f.audit...),
		exports:      cloneMap(f.exports),
		exportOrder:  append([]uuid.UUID(nil), f.exportOrder...),
	}
	if f.settings != nil {
		cp := *f.settings
		snap.settings = &cp
	}
	return snap
}

func (f *fakeRepo) restore(snap repoSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoices = snap.invoices
	f.invoiceOrder = snap.invoiceOrder
	f.payments = snap.payments
	f.paymentOrder = snap.paymentOrder
	f.templates = snap.templates
	f.recurring = snap.recurring
	f.reminders = snap.reminders
	f.audit = snap.audit
	f.exports = snap.exports
	f.exportOrder = snap.exportOrder
	f.settings = snap.settings
}

func (f *fakeRepo) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createInvoiceErr != nil {
		return f.createInvoiceErr
	}
	for _, existing := range f.invoices {
		if existing.InvoiceNumber == inv.InvoiceNumber {
			return domain.ErrDuplicateInvoiceNumber
		}
	}
	cp := *inv
	f.invoices[inv.ID] = &cp
	f.invoiceOrder = append(f.invoiceOrder, inv.ID)
	return nil
}

func (f *fakeRepo) GetInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[id]
	if !ok {
		return nil, domain.ErrInvoiceNotFound
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeRepo) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	return f.GetInvoice(ctx, id)
}

func (f *fakeRepo) GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invoices {
		if inv.InvoiceNumber == number {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, domain.ErrInvoiceNotFound
}

func (f *fakeRepo) UpdateInvoice(ctx context.Context, inv *domain.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateInvoiceErr != nil {
		return f.updateInvoiceErr
	}
	if _, ok := f.invoices[inv.ID]; !ok {
		return domain.ErrInvoiceNotFound
	}
	cp := *inv
	f.invoices[inv.ID] = &cp
	return nil
}

func (f *fakeRepo) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.invoices[id]; !ok {
		return domain.ErrInvoiceNotFound
	}
	delete(f.invoices, id)
	return nil
}

func matchesFilter(inv *domain.Invoice, filter domain.InvoiceFilter) bool {
	if len(filter.IDs) > 0 {
		found := false
		for _, id := range filter.IDs {
			if inv.ID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, s := range filter.Statuses {
			if inv.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.CustomerID != nil && (inv.CustomerID == nil || *inv.CustomerID != *filter.CustomerID) {
		return false
	}
	return true
}

func (f *fakeRepo) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Invoice
	for _, id := range f.invoiceOrder {
		inv, ok := f.invoices[id]
		if !ok || !matchesFilter(inv, filter) {
			continue
		}
		out = append(out, *inv)
	}

	offset := int(filter.Offset)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if filter.Limit > 0 && int(filter.Limit) < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeRepo) CountInvoices(ctx context.Context, filter domain.InvoiceFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, inv := range f.invoices {
		if matchesFilter(inv, filter) {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) ListOverdueCandidateIDs(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for _, id := range f.invoiceOrder {
		inv, ok := f.invoices[id]
		if !ok {
			continue
		}
		switch inv.Status {
		case domain.InvoiceStatusPending, domain.InvoiceStatusSent,
			domain.InvoiceStatusViewed, domain.InvoiceStatusApproved,
			domain.InvoiceStatusPartiallyPaid:
		default:
			continue
		}
		if asOf.After(inv.DueDate) && inv.BalanceCents > 0 {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListOverdueInvoices(ctx context.Context) ([]domain.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Invoice
	for _, id := range f.invoiceOrder {
		if inv, ok := f.invoices[id]; ok && inv.Status == domain.InvoiceStatusOverdue {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreatePayment(ctx context.Context, p *domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.payments[p.ID] = &cp
	f.paymentOrder = append(f.paymentOrder, p.ID)
	return nil
}

func (f *fakeRepo) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	p.Status = status
	return nil
}

func (f *fakeRepo) ListInvoicePayments(ctx context.Context, invoiceID uuid.UUID) ([]domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Payment
	for _, id := range f.paymentOrder {
		if p, ok := f.payments[id]; ok && p.InvoiceID == invoiceID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Payment
	for _, id := range f.paymentOrder {
		p, ok := f.payments[id]
		if !ok {
			continue
		}
		if filter.InvoiceID != nil && p.InvoiceID != *filter.InvoiceID {
			continue
		}
		if filter.Method != nil && p.Method != *filter.Method {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeRepo) CountPayments(ctx context.Context, filter domain.PaymentFilter) (int64, error) {
	payments, _ := f.ListPayments(ctx, filter)
	return int64(len(payments)), nil
}

func (f *fakeRepo) CreateTemplate(ctx context.Context, t *domain.InvoiceTemplate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.templates[t.ID] = &cp
	return nil
}

func (f *fakeRepo) GetTemplate(ctx context.Context, id uuid.UUID) (*domain.InvoiceTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.templates[id]
	if !ok {
		return nil, domain.ErrTemplateNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeRepo) ListTemplates(ctx context.Context, activeOnly bool, limit, offset int32) ([]domain.InvoiceTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.InvoiceTemplate
	for _, t := range f.templates {
		if activeOnly && !t.IsActive {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRepo) UpdateTemplate(ctx context.Context, t *domain.InvoiceTemplate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.templates[t.ID]; !ok {
		return domain.ErrTemplateNotFound
	}
	cp := *t
	f.templates[t.ID] = &cp
	return nil
}

func (f *fakeRepo) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.templates[id]; !ok {
		return domain.ErrTemplateNotFound
	}
	delete(f.templates, id)
	return nil
}

func (f *fakeRepo) CreateRecurring(ctx context.Context, r *domain.RecurringInvoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *r
	f.recurring[r.ID] = &cp
	return nil
}

func (f *fakeRepo) GetRecurring(ctx context.Context, id uuid.UUID) (*domain.RecurringInvoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recurring[id]
	if !ok {
		return nil, domain.ErrRecurringNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRepo) GetRecurringForUpdate(ctx context.Context, id uuid.UUID) (*domain.RecurringInvoice, error) {
	return f.GetRecurring(ctx, id)
}

func (f *fakeRepo) ListRecurring(ctx context.Context, activeOnly bool, limit, offset int32) ([]domain.RecurringInvoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.RecurringInvoice
	for _, r := range f.recurring {
		if activeOnly && !r.IsActive {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRepo) ListDueRecurring(ctx context.Context, asOf time.Time) ([]domain.RecurringInvoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.RecurringInvoice
	for _, r := range f.recurring {
		if r.ShouldGenerate(asOf) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextGenerationDate.Before(out[j].NextGenerationDate) })
	return out, nil
}

func (f *fakeRepo) UpdateRecurring(ctx context.Context, r *domain.RecurringInvoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.recurring[r.ID]; !ok {
		return domain.ErrRecurringNotFound
	}
	cp := *r
	f.recurring[r.ID] = &cp
	return nil
}

func (f *fakeRepo) CreateReminder(ctx context.Context, r *domain.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminders = append(f.reminders, *r)
	return nil
}

func (f *fakeRepo) ListReminders(ctx context.Context, invoiceID uuid.UUID) ([]domain.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reminder
	for _, r := range f.reminders {
		if r.InvoiceID == invoiceID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateAuditEntry(ctx context.Context, e *domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.auditErr != nil {
		return f.auditErr
	}
	f.audit = append(f.audit, *e)
	return nil
}

func (f *fakeRepo) ListAuditTrail(ctx context.Context, invoiceID uuid.UUID, limit, offset int32) ([]domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AuditEntry
	for i := len(f.audit) - 1; i >= 0; i-- {
		if f.audit[i].InvoiceID == invoiceID {
			out = append(out, f.audit[i])
		}
	}
	return out, nil
}

// auditActions returns the recorded actions for an invoice, oldest first.
func (f *fakeRepo) auditActions(invoiceID uuid.UUID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.audit {
		if e.InvoiceID == invoiceID {
			out = append(out, e.Action)
		}
	}
	return out
}

func (f *fakeRepo) CreateExport(ctx context.Context, e *domain.InvoiceExport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.exports[e.ID] = &cp
	f.exportOrder = append(f.exportOrder, e.ID)
	return nil
}

func (f *fakeRepo) GetExport(ctx context.Context, id uuid.UUID) (*domain.InvoiceExport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.exports[id]
	if !ok {
		return nil, domain.ErrExportNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeRepo) ClaimNextPendingExport(ctx context.Context) (*domain.InvoiceExport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.exportOrder {
		e, ok := f.exports[id]
		if !ok || e.Status != domain.ExportStatusPending {
			continue
		}
		e.Status = domain.ExportStatusProcessing
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeRepo) CompleteExport(ctx context.Context, id uuid.UUID, downloadURL string, totalRecords int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.exports[id]
	if !ok {
		return domain.ErrExportNotFound
	}
	now := time.Now()
	e.Status = domain.ExportStatusCompleted
	e.DownloadURL = downloadURL
	e.TotalRecords = totalRecords
	e.ProcessedRecords = totalRecords
	e.CompletedAt = &now
	return nil
}

func (f *fakeRepo) FailExport(ctx context.Context, id uuid.UUID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.exports[id]
	if !ok {
		return domain.ErrExportNotFound
	}
	e.Status = domain.ExportStatusFailed
	e.ErrorMessage = errMsg
	return nil
}

func (f *fakeRepo) GetSettings(ctx context.Context) (*domain.InvoiceSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settings == nil {
		return nil, domain.NotFound("Invoice settings not initialized")
	}
	cp := *f.settings
	return &cp, nil
}

func (f *fakeRepo) CreateSettings(ctx context.Context, s *domain.InvoiceSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settings != nil {
		return nil
	}
	cp := *s
	f.settings = &cp
	return nil
}

func (f *fakeRepo) UpdateSettings(ctx context.Context, s *domain.InvoiceSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settings == nil {
		return domain.NotFound("Invoice settings not initialized")
	}
	cp := *s
	f.settings = &cp
	return nil
}

func (f *fakeRepo) IncrementInvoiceNumber(ctx context.Context) (string, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settings == nil {
		return "", 0, domain.NotFound("Invoice settings not initialized")
	}
	n := f.settings.NextNumber
	f.settings.NextNumber++
	return f.settings.NumberPrefix, n, nil
}

func (f *fakeRepo) GetInvoiceSummaryStats(ctx context.Context) (*domain.InvoiceSummaryStats, error) {
	if f.summary == nil {
		return &domain.InvoiceSummaryStats{}, nil
	}
	return f.summary, nil
}

func (f *fakeRepo) GetAgingReport(ctx context.Context, asOf time.Time) ([]domain.AgingBucket, error) {
	return f.aging, nil
}

func (f *fakeRepo) GetRevenueTrends(ctx context.Context, from, to time.Time) ([]domain.RevenuePoint, error) {
	return f.revenue, nil
}

var _ repository.Repository = (*fakeRepo)(nil)

// fakeNotifier records deliveries and can be told to fail.
type fakeNotifier struct {
	mu        sync.Mutex
	issued    int
	reminders int
	fail      error
}

func (n *fakeNotifier) SendInvoiceIssued(ctx context.Context, inv *domain.Invoice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.issued++
	return nil
}

func (n *fakeNotifier) SendReminder(ctx context.Context, inv *domain.Invoice, reminder *domain.Reminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.reminders++
	return nil
}

// fakeCache is an in-memory cache.Cache. TTLs are ignored; tests assert
// on presence and deletions instead.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deletes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *fakeCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.deletes++
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

var _ cache.Cache = (*fakeCache)(nil)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func seededSettings() *domain.InvoiceSettings {
	return &domain.InvoiceSettings{
		ID:                  uuid.New(),
		DefaultCurrency:     "USD",
		DefaultPaymentTerms: 30,
		AutoGenerateNumbers: true,
		NumberPrefix:        "INV",
		NextNumber:          1,
		EnableReminders:     true,
		ReminderSchedule:    []int{7, 3, 1},
	}
}

func testItems() []domain.LineItem {
	return []domain.LineItem{
		{Description: "Booking commission", Quantity: 2, UnitPriceCents: 5000},
		{Description: "Service fee", Quantity: 1, UnitPriceCents: 2500},
	}
}
