package service

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/event-ticket-bot/internal/model"
)

func TestBuildWorkbook(t *testing.T) {
	rows := []model.TicketDetails{{
		Ticket: model.Ticket{
			ID: "T-00000001", BuyerName: "Ann", BuyerEmail: "ann@example.com", FinalPrice: 900,
			IsActive: true, IsUsed: true, PurchaseDate: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		ProductName: "VIP",
	}}

	data, err := BuildWorkbook(rows)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(reportSheet)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ReportColumns, got[0])
	assert.Equal(t, []string{"T-00000001", "Ann", "ann@example.com", "900", "TRUE", "2025-01-02 03:04:05", "VIP"}, got[1])
}
