package service

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haldorsen/norn/internal/domain"
	"github.com/haldorsen/norn/internal/storage"
)

func exportFixture(t *testing.T) (*ExportService, *InvoiceService, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	invSvc, _ := newInvoiceService(repo)

	store, err := storage.NewLocalStorage(t.TempDir(), "/exports")
	require.NoError(t, err)

	svc := NewExportService(repo, store, testLogger(), time.Hour)
	return svc, invSvc, repo
}

func TestInitiateExport(t *testing.T) {
	svc, _, _ := exportFixture(t)

	export, err := svc.InitiateExport(context.Background(), domain.InitiateExportParams{
		Format:      domain.ExportFormatJSON,
		RequestedBy: uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusPending, export.Status)
	assert.True(t, export.ExpiresAt.After(export.CreatedAt))

	_, err = svc.InitiateExport(context.Background(), domain.InitiateExportParams{
		Format: domain.ExportFormat("xlsx"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)
}

func TestProcessPendingExportsAndDownload(t *testing.T) {
	svc, invSvc, repo := exportFixture(t)

	a := seedInvoice(t, invSvc, repo, domain.InvoiceStatusSent)
	b := seedInvoice(t, invSvc, repo, domain.InvoiceStatusSent)

	export, err := svc.InitiateExport(context.Background(), domain.InitiateExportParams{
		Format:      domain.ExportFormatJSON,
		Filter:      domain.InvoiceFilter{IDs: []uuid.UUID{a.ID, b.ID}},
		RequestedBy: uuid.New(),
	})
	require.NoError(t, err)

	// Download before completion is a conflict.
	_, _, err = svc.DownloadExport(context.Background(), export.ID)
	assert.ErrorIs(t, err, domain.ErrExportNotReady)

	processed, err := svc.ProcessPendingExports(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	done, err := svc.GetExport(context.Background(), export.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusCompleted, done.Status)
	assert.Equal(t, 2, done.TotalRecords)
	assert.NotEmpty(t, done.DownloadURL)
	require.NotNil(t, done.CompletedAt)

	// Each included invoice gets an audit entry on completion.
	assert.Equal(t, []string{domain.AuditActionCreated, domain.AuditActionExported}, repo.auditActions(a.ID))
	assert.Equal(t, []string{domain.AuditActionCreated, domain.AuditActionExported}, repo.auditActions(b.ID))

	rc, meta, err := svc.DownloadExport(context.Background(), export.ID)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, export.ID, meta.ID)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)

	var decoded []domain.Invoice
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	numbers := []string{decoded[0].InvoiceNumber, decoded[1].InvoiceNumber}
	assert.ElementsMatch(t, []string{a.InvoiceNumber, b.InvoiceNumber}, numbers)

	// Queue is drained.
	processed, err = svc.ProcessPendingExports(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
}

func TestProcessPendingExportsCSV(t *testing.T) {
	svc, invSvc, repo := exportFixture(t)
	inv := seedInvoice(t, invSvc, repo, domain.InvoiceStatusSent)

	export, err := svc.InitiateExport(context.Background(), domain.InitiateExportParams{
		Format:      domain.ExportFormatCSV,
		Filter:      domain.InvoiceFilter{IDs: []uuid.UUID{inv.ID}},
		RequestedBy: uuid.New(),
	})
	require.NoError(t, err)

	_, err = svc.ProcessPendingExports(context.Background())
	require.NoError(t, err)

	rc, _, err := svc.DownloadExport(context.Background(), export.ID)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2) // header + one row
	assert.Contains(t, lines[1], inv.InvoiceNumber)
}

func TestDownloadExpiredExport(t *testing.T) {
	svc, invSvc, repo := exportFixture(t)
	inv := seedInvoice(t, invSvc, repo, domain.InvoiceStatusSent)

	export, err := svc.InitiateExport(context.Background(), domain.InitiateExportParams{
		Format:      domain.ExportFormatJSON,
		Filter:      domain.InvoiceFilter{IDs: []uuid.UUID{inv.ID}},
		RequestedBy: uuid.New(),
	})
	require.NoError(t, err)

	_, err = svc.ProcessPendingExports(context.Background())
	require.NoError(t, err)

	svc.now = func() time.Time { return export.ExpiresAt.Add(time.Minute) }
	_, _, err = svc.DownloadExport(context.Background(), export.ID)
	assert.ErrorIs(t, err, domain.ErrExportExpired)
}
