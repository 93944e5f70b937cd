package service

import (
	"context"
	"fmt"
	"io"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// ExportService writes request listings to a spreadsheet
type ExportService interface {
	// Export writes one sheet per request kind. Approvers and admins see
	// every request; other roles see only their own.
	Export(ctx context.Context, actor entity.Actor, w io.Writer) error
}

type exportServiceImpl struct {
	requests port.RequestRepository
	profiles port.ProfileRepository
	exporter port.SpreadsheetExporter
}

// NewExportService creates a new ExportService
func NewExportService(requests port.RequestRepository, profiles port.ProfileRepository, exporter port.SpreadsheetExporter) ExportService {
	return &exportServiceImpl{requests: requests, profiles: profiles, exporter: exporter}
}

var exportHeaders = []string{"ID", "Title", "Amount", "Status", "Submitter", "Created At"}

func (s *exportServiceImpl) Export(ctx context.Context, actor entity.Actor, w io.Writer) error {
	p, err := requireProfile(ctx, s.profiles, actor)
	if err != nil {
		return err
	}

	filter := port.RequestFilter{}
	if !p.Role.IsApprover() && p.Role != domainwf.RoleAdmin {
		filter.SubmitterID = p.ID
	}

	sheets := make([]port.ExportSheet, 0, len(entity.Kinds))
	for _, kind := range entity.Kinds {
		list, err := s.requests.List(ctx, kind, filter)
		if err != nil {
			return fmt.Errorf("%w: list %s: %v", ErrPersistence, kind, err)
		}
		sheet := port.ExportSheet{Name: kind.Table(), Headers: exportHeaders}
		for _, r := range list {
			sheet.Rows = append(sheet.Rows, []interface{}{
				r.ID, r.Title, r.Amount, r.Status.Label(), r.SubmitterID, r.CreatedAt.Format("2006-01-02 15:04"),
			})
		}
		sheets = append(sheets, sheet)
	}

	return s.exporter.Export(ctx, w, sheets)
}
