package service

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/event-ticket-bot/internal/model"
	"github.com/iliyamo/event-ticket-bot/internal/repository"
)

const reportSheet = "Tickets"

// ReportColumns are the header cells of an event report.
var ReportColumns = []string{"Ticket ID", "Buyer name", "Buyer email", "Final price", "Used", "Purchase date", "Tier"}

// Reports builds Excel workbooks of the active tickets of an event.
type Reports struct {
	events  *repository.EventRepo
	tickets *repository.TicketRepo
}

// NewReports returns a report builder.
func NewReports(events *repository.EventRepo, tickets *repository.TicketRepo) *Reports {
	return &Reports{events: events, tickets: tickets}
}

// Report is a rendered workbook.
type Report struct {
	Event    model.Event
	Filename string
	Data     []byte
	Rows     int
}

// Export renders the report of eventID.
func (r *Reports) Export(ctx context.Context, eventID int64) (Report, error) {
	ev, err := r.events.Get(ctx, eventID)
	if err != nil {
		return Report{}, err
	}
	rows, err := r.tickets.ListActiveByEvent(ctx, eventID)
	if err != nil {
		return Report{}, err
	}
	data, err := BuildWorkbook(rows)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Event:    ev,
		Filename: fmt.Sprintf("report_event_%d.xlsx", ev.ID),
		Data:     data,
		Rows:     len(rows),
	}, nil
}

// BuildWorkbook renders one row per ticket under a header row.
func BuildWorkbook(rows []model.TicketDetails) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), reportSheet); err != nil {
		return nil, err
	}
	header := make([]any, len(ReportColumns))
	for i, c := range ReportColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(reportSheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, t := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{
			t.ID, t.BuyerName, t.BuyerEmail, t.FinalPrice, t.IsUsed,
			t.PurchaseDate.UTC().Format("2006-01-02 15:04:05"), t.ProductName,
		}
		if err := f.SetSheetRow(reportSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(reportSheet, "A", "G", 20); err != nil {
		return nil, err
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
