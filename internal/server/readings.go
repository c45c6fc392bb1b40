package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/vitals-tracker/constants"
	"github.com/joseph-ayodele/vitals-tracker/internal/readings"
	"github.com/joseph-ayodele/vitals-tracker/internal/utils"
	"github.com/joseph-ayodele/vitals-tracker/internal/vitals"
)

type ReadingServer struct {
	svc    *readings.Service
	logger *slog.Logger
}

func NewReadingServer(svc *readings.Service, logger *slog.Logger) *ReadingServer {
	return &ReadingServer{
		svc:    svc,
		logger: logger,
	}
}

// CreateReading stores a manually entered reading without photos.
func (s *ReadingServer) CreateReading(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	profileID, err := utils.UUID(req, "profile_id")
	if err != nil {
		return nil, invalidArg(err)
	}
	measuredAt, err := utils.Time(req, "measured_at")
	if err != nil {
		return nil, invalidArg(err)
	}
	values, err := utils.Values(req, "values")
	if err != nil {
		return nil, invalidArg(err)
	}

	cr := readings.CreateRequest{ProfileID: profileID, Notes: utils.OptionalString(req, "notes")}
	if measuredAt != nil {
		cr.MeasuredAt = measuredAt.UTC()
	}
	for _, v := range values {
		cr.Values.Set(v.Field, v.Value)
	}
	r, err := s.svc.Create(ctx, cr)
	if err != nil {
		return nil, err
	}
	return newStruct(map[string]any{"reading": utils.ToPBReading(r)})
}

// ListReadings accepts optional from/to (RFC 3339 or YYYY-MM-DD), limit and
// bp_category.
func (s *ReadingServer) ListReadings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	profileID, err := utils.UUID(req, "profile_id")
	if err != nil {
		return nil, invalidArg(err)
	}
	f, err := listFilter(req)
	if err != nil {
		return nil, invalidArg(err)
	}

	recs, err := s.svc.List(ctx, profileID, f)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(recs))
	for _, r := range recs {
		out = append(out, utils.ToPBReading(r))
	}
	return newStruct(map[string]any{"readings": out})
}

func listFilter(req *structpb.Struct) (readings.ListFilter, error) {
	var f readings.ListFilter
	var err error
	if f.Start, err = utils.Time(req, "from"); err != nil {
		return f, err
	}
	if f.End, err = utils.Time(req, "to"); err != nil {
		return f, err
	}
	// a bare date as upper bound covers that whole day
	if raw := utils.String(req, "to"); f.End != nil && len(raw) == len("2006-01-02") {
		end := f.End.Add(24*time.Hour - time.Nanosecond)
		f.End = &end
	}
	f.Limit = utils.Int(req, "limit")
	bp, err := parseBPCategory(utils.String(req, "bp_category"))
	if err != nil {
		return f, err
	}
	f.BPCategory = bp
	return f, nil
}

func parseBPCategory(raw string) (constants.BPCategory, error) {
	if raw == "" {
		return "", nil
	}
	cat, ok := constants.CanonicalizeBP(raw)
	if !ok {
		return "", fmt.Errorf("bp_category %q is not one of %v", raw, constants.BPCategoriesAsStringSlice())
	}
	return cat, nil
}

func readingIDs(req *structpb.Struct, key string) (uuid.UUID, uuid.UUID, error) {
	profileID, err := utils.UUID(req, "profile_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, invalidArg(err)
	}
	id, err := utils.UUID(req, key)
	if err != nil {
		return uuid.Nil, uuid.Nil, invalidArg(err)
	}
	return profileID, id, nil
}

func (s *ReadingServer) GetReading(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	profileID, id, err := readingIDs(req, "reading_id")
	if err != nil {
		return nil, err
	}
	r, err := s.svc.Get(ctx, profileID, id)
	if err != nil {
		return nil, err
	}
	return newStruct(map[string]any{"reading": utils.ToPBReading(r)})
}

func (s *ReadingServer) DeleteReading(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	profileID, id, err := readingIDs(req, "reading_id")
	if err != nil {
		return nil, err
	}
	if err := s.svc.Delete(ctx, profileID, id); err != nil {
		return nil, err
	}
	s.logger.Info("readings.delete.ok", "profile_id", profileID, "reading_id", id)
	return newStruct(map[string]any{"deleted": true})
}

// GetSourceImage returns the archived original, base64 encoded.
func (s *ReadingServer) GetSourceImage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	profileID, id, err := readingIDs(req, "image_id")
	if err != nil {
		return nil, err
	}
	img, data, err := s.svc.SourceImage(ctx, profileID, id)
	if err != nil {
		return nil, err
	}
	return newStruct(map[string]any{
		"image": utils.ToPBSourceImage(img),
		"data":  utils.EncodeBytes(data),
	})
}

func (s *ReadingServer) GetSummary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	profileID, err := utils.UUID(req, "profile_id")
	if err != nil {
		return nil, invalidArg(err)
	}
	sum, err := s.svc.Summary(ctx, profileID)
	if err != nil {
		return nil, err
	}
	out := utils.ToPBSummary(sum)
	out["fields"] = fieldNames()
	return newStruct(out)
}

func fieldNames() []any {
	out := make([]any, 0, len(vitals.Fields))
	for _, f := range vitals.Fields {
		out = append(out, string(f))
	}
	return out
}
