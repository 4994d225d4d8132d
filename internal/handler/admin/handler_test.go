package admin_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haldorsen/norn/internal/domain"
	"github.com/haldorsen/norn/internal/handler/admin"
	"github.com/haldorsen/norn/internal/middleware"
	"github.com/haldorsen/norn/internal/routes"
)

// Stub services return canned responses so tests exercise binding,
// validation, routing, and error mapping without real business logic.
// The embedded interfaces panic on anything a test should not reach.

var knownInvoiceID = uuid.MustParse("11111111-1111-1111-1111-111111111111")

func knownInvoice() *domain.Invoice {
	return &domain.Invoice{
		ID:            knownInvoiceID,
		InvoiceNumber: "INV-0001",
		Type:          domain.InvoiceTypeStandard,
		Status:        domain.InvoiceStatusSent,
		BillTo:        domain.Contact{Name: "Acme Travel", Email: "billing@acme.test"},
		TotalCents:    12500,
		BalanceCents:  12500,
	}
}

type stubInvoices struct {
	domain.InvoiceService
}

func (s stubInvoices) CreateInvoice(ctx context.Context, params domain.CreateInvoiceParams) (*domain.Invoice, error) {
	inv := knownInvoice()
	inv.Status = domain.InvoiceStatusDraft
	inv.BillTo = params.BillTo
	inv.Items = params.Items
	inv.CreatedBy = params.CreatedBy
	return inv, nil
}

func (s stubInvoices) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*domain.Invoice, error) {
	if invoiceID != knownInvoiceID {
		return nil, domain.ErrInvoiceNotFound
	}
	return knownInvoice(), nil
}

func (s stubInvoices) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, int64, error) {
	return []domain.Invoice{*knownInvoice()}, 1, nil
}

func (s stubInvoices) SendInvoice(ctx context.Context, invoiceID, actorID uuid.UUID) (*domain.Invoice, error) {
	return nil, domain.ErrInvoiceNotDraft
}

func (s stubInvoices) RejectInvoice(ctx context.Context, invoiceID, actorID uuid.UUID, reason string) (*domain.Invoice, error) {
	inv := knownInvoice()
	inv.Status = domain.InvoiceStatusRejected
	inv.RejectionReason = reason
	return inv, nil
}

type stubSettings struct {
	domain.SettingsService
}

func (s stubSettings) GetSettings(ctx context.Context) (*domain.InvoiceSettings, error) {
	return &domain.InvoiceSettings{
		DefaultCurrency: "USD",
		NumberPrefix:    "INV",
		NextNumber:      1,
	}, nil
}

type stubAnalytics struct {
	domain.AnalyticsService
}

func (s stubAnalytics) RevenueTrends(ctx context.Context, from, to time.Time) ([]domain.RevenuePoint, error) {
	if to.Before(from) {
		return nil, domain.Invalid("to must not precede from")
	}
	return []domain.RevenuePoint{}, nil
}

var (
	serverOnce sync.Once
	server     *echo.Echo
)

// testServer shares one echo instance across tests; the prometheus HTTP
// metrics register globally and must only be created once.
func testServer(t *testing.T) *echo.Echo {
	t.Helper()
	serverOnce.Do(func() {
		h := admin.NewHandler(admin.Services{
			Invoices:  stubInvoices{},
			Settings:  stubSettings{},
			Analytics: stubAnalytics{},
		}, zerolog.Nop())
		server = echo.New()
		routes.Register(server, h, zerolog.Nop())
	})
	return server
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doRequest(t *testing.T, method, path, body string, withActor bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if withActor {
		req.Header.Set(middleware.HeaderActorID, uuid.NewString())
	}
	rec := httptest.NewRecorder()
	testServer(t).ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestHealthIsOpen(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestActorRequired(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/admin/api/v1/invoices", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, domain.EUNAUTHORIZED, env.Error.Code)
}

func TestActorMustBeUUID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/api/v1/invoices", nil)
	req.Header.Set(middleware.HeaderActorID, "not-a-uuid")
	rec := httptest.NewRecorder()
	testServer(t).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateInvoice(t *testing.T) {
	body := `{
		"bill_to": {"name": "Acme Travel", "email": "billing@acme.test"},
		"items": [{"description": "Commission", "quantity": 1, "unit_price_cents": 12500}]
	}`
	rec := doRequest(t, http.MethodPost, "/admin/api/v1/invoices", body, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var inv domain.Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.Equal(t, domain.InvoiceStatusDraft, inv.Status)
	assert.Equal(t, "Acme Travel", inv.BillTo.Name)
	assert.NotEqual(t, uuid.Nil, inv.CreatedBy)
}

func TestCreateInvoiceRequiresItems(t *testing.T) {
	body := `{"bill_to": {"name": "Acme Travel", "email": "billing@acme.test"}, "items": []}`
	rec := doRequest(t, http.MethodPost, "/admin/api/v1/invoices", body, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, domain.EINVALID, env.Error.Code)
}

func TestGetInvoiceNotFound(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/admin/api/v1/invoices/"+uuid.NewString(), "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, domain.ENOTFOUND, env.Error.Code)
}

func TestGetInvoiceBadID(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/admin/api/v1/invoices/not-a-uuid", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListInvoicesEnvelope(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/admin/api/v1/invoices?status=sent&limit=10", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data  []domain.Invoice `json:"data"`
		Total int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Total)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "INV-0001", resp.Data[0].InvoiceNumber)
}

func TestListInvoicesRejectsUnknownStatus(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/admin/api/v1/invoices?status=sideways", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransitionConflictMapsTo409(t *testing.T) {
	rec := doRequest(t, http.MethodPost, "/admin/api/v1/invoices/"+knownInvoiceID.String()+"/send", "", true)
	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, domain.ECONFLICT, env.Error.Code)
	assert.Equal(t, domain.ErrInvoiceNotDraft.Message, env.Error.Message)
}

func TestRejectRequiresReason(t *testing.T) {
	path := "/admin/api/v1/invoices/" + knownInvoiceID.String() + "/reject"

	rec := doRequest(t, http.MethodPost, path, `{}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, http.MethodPost, path, `{"reason": "duplicate billing"}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var inv domain.Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.Equal(t, domain.InvoiceStatusRejected, inv.Status)
	assert.Equal(t, "duplicate billing", inv.RejectionReason)
}

func TestGetSettings(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/admin/api/v1/settings", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var settings domain.InvoiceSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, "USD", settings.DefaultCurrency)
}

func TestRevenueRangeValidation(t *testing.T) {
	rec := doRequest(t, http.MethodGet,
		"/admin/api/v1/analytics/revenue?from=2026-02-01&to=2026-01-01", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
