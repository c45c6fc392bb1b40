package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/imaging"
	"github.com/joseph-ayodele/vitals-tracker/internal/pipeline"
	"github.com/joseph-ayodele/vitals-tracker/internal/profiles"
	"github.com/joseph-ayodele/vitals-tracker/internal/review"
	"github.com/joseph-ayodele/vitals-tracker/internal/utils"
)

type ExtractionServer struct {
	profiles  *profiles.Service
	extractor *pipeline.Extractor
	gate      *review.Gate
	logger    *slog.Logger
}

func NewExtractionServer(p *profiles.Service, extractor *pipeline.Extractor, gate *review.Gate, logger *slog.Logger) *ExtractionServer {
	return &ExtractionServer{
		profiles:  p,
		extractor: extractor,
		gate:      gate,
		logger:    logger,
	}
}

// Extract runs the pipeline on base64 photos and opens a review draft for the
// result. Nothing is persisted as a reading until ConfirmDraft.
func (s *ExtractionServer) Extract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	profileID, err := utils.UUID(req, "profile_id")
	if err != nil {
		return nil, invalidArg(err)
	}
	images, err := decodeImages(req)
	if err != nil {
		return nil, invalidArg(err)
	}
	if err := s.profiles.Require(ctx, profileID); err != nil {
		return nil, err
	}

	res, err := s.extractor.Extract(ctx, pipeline.Request{ProfileID: profileID, Images: images})
	if err != nil {
		if res != nil {
			s.logger.Warn("extract.rpc.failed", "profile_id", profileID, "job_id", res.JobID, "code", common.ErrorCode(err))
		}
		return nil, err
	}
	d, err := s.gate.Open(ctx, res)
	if err != nil {
		return nil, err
	}
	return newStruct(map[string]any{
		"draft": utils.ToPBDraft(d),
		"model": res.Model,
	})
}

func decodeImages(req *structpb.Struct) ([]imaging.RawImage, error) {
	list := req.GetFields()["images"].GetListValue().GetValues()
	if len(list) == 0 {
		return nil, fmt.Errorf("images is required")
	}
	if len(list) > pipeline.MaxImages {
		return nil, fmt.Errorf("at most %d images per request", pipeline.MaxImages)
	}
	out := make([]imaging.RawImage, 0, len(list))
	for i, v := range list {
		img := v.GetStructValue()
		data, err := utils.Bytes(img.GetFields()["data"])
		if err != nil {
			return nil, fmt.Errorf("images[%d].data must be base64: %w", i, err)
		}
		name := utils.String(img, "filename")
		if name == "" {
			name = fmt.Sprintf("image-%d", i+1)
		}
		out = append(out, imaging.RawImage{
			Data:      data,
			MediaType: utils.String(img, "media_type"),
			Filename:  name,
		})
	}
	return out, nil
}

func draftIDs(req *structpb.Struct) (uuid.UUID, uuid.UUID, error) {
	profileID, err := utils.UUID(req, "profile_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, invalidArg(err)
	}
	draftID, err := utils.UUID(req, "draft_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, invalidArg(err)
	}
	return profileID, draftID, nil
}

func (s *ExtractionServer) GetDraft(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	profileID, draftID, err := draftIDs(req)
	if err != nil {
		return nil, err
	}
	d, err := s.gate.Get(ctx, profileID, draftID)
	if err != nil {
		return nil, err
	}
	return newStruct(map[string]any{"draft": utils.ToPBDraft(d)})
}

// EditDraft takes {"values": {"heightCm": 170.2, "bmi": null}}; null clears a
// field.
func (s *ExtractionServer) EditDraft(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	profileID, draftID, err := draftIDs(req)
	if err != nil {
		return nil, err
	}
	values, err := utils.Values(req, "values")
	if err != nil {
		return nil, invalidArg(err)
	}
	edits := make([]review.Edit, 0, len(values))
	for _, v := range values {
		edits = append(edits, review.Edit{Field: v.Field, Value: v.Value})
	}
	d, err := s.gate.Edit(ctx, profileID, draftID, edits...)
	if err != nil {
		return nil, err
	}
	return newStruct(map[string]any{"draft": utils.ToPBDraft(d)})
}

func (s *ExtractionServer) ConfirmDraft(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	profileID, draftID, err := draftIDs(req)
	if err != nil {
		return nil, err
	}
	measuredAt, err := utils.Time(req, "measured_at")
	if err != nil {
		return nil, invalidArg(err)
	}
	cr := review.ConfirmRequest{Notes: utils.OptionalString(req, "notes")}
	if measuredAt != nil {
		cr.MeasuredAt = measuredAt.UTC()
	}
	r, err := s.gate.Confirm(ctx, profileID, draftID, cr)
	if err != nil {
		return nil, err
	}
	s.logger.Info("extract.rpc.confirmed", "draft_id", draftID, "reading_id", r.ID)
	return newStruct(map[string]any{"reading": utils.ToPBReading(r)})
}

func (s *ExtractionServer) DiscardDraft(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	profileID, draftID, err := draftIDs(req)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Discard(ctx, profileID, draftID); err != nil {
		return nil, err
	}
	return newStruct(map[string]any{"discarded": true})
}
