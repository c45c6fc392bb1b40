package server

import (
	"context"
	"log/slog"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/vitals-tracker/internal/export"
	"github.com/joseph-ayodele/vitals-tracker/internal/utils"
)

type ExportServer struct {
	svc    *export.Service
	logger *slog.Logger
}

func NewExportServer(svc *export.Service, logger *slog.Logger) *ExportServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportServer{svc: svc, logger: logger}
}

// ExportReadings returns the workbook base64 encoded under "xlsx".
// Dates are YYYY-MM-DD:
// - only from -> from..today (inclusive)
// - only to   -> beginning..to (inclusive)
// - none      -> all.
func (s *ExportServer) ExportReadings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	profileID, err := utils.UUID(req, "profile_id")
	if err != nil {
		return nil, invalidArg(err)
	}
	from, err := utils.Time(req, "from_date")
	if err != nil {
		return nil, invalidArg(err)
	}
	to, err := utils.Time(req, "to_date")
	if err != nil {
		return nil, invalidArg(err)
	}
	bp, err := parseBPCategory(utils.String(req, "bp_category"))
	if err != nil {
		return nil, invalidArg(err)
	}

	xlsx, err := s.svc.ExportReadingsXLSX(ctx, export.Request{ProfileID: profileID, From: from, To: to, BPCategory: bp})
	if err != nil {
		s.logger.Error("export.xlsx.failed", "profile_id", profileID, "err", err)
		return nil, err
	}
	return newStruct(map[string]any{
		"xlsx":     utils.EncodeBytes(xlsx),
		"filename": "vitals-" + profileID.String()[:8] + ".xlsx",
	})
}
