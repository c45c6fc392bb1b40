package server

import (
	"context"
	"log/slog"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/vitals-tracker/internal/profiles"
	"github.com/joseph-ayodele/vitals-tracker/internal/utils"
)

type ProfileServer struct {
	svc    *profiles.Service
	logger *slog.Logger
}

func NewProfileServer(svc *profiles.Service, logger *slog.Logger) *ProfileServer {
	return &ProfileServer{
		svc:    svc,
		logger: logger,
	}
}

// CreateProfile creates a profile, or returns the existing one with that name.
func (s *ProfileServer) CreateProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := s.svc.CreateProfile(ctx, profiles.CreateProfileRequest{Name: utils.String(req, "name")})
	if err != nil {
		return nil, err
	}
	return newStruct(map[string]any{"profile": utils.ToPBProfile(p)})
}

// ListProfiles lists all the profiles.
func (s *ProfileServer) ListProfiles(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	plist, err := s.svc.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]any, 0, len(plist))
	for _, p := range plist {
		out = append(out, utils.ToPBProfile(p))
	}
	return newStruct(map[string]any{"profiles": out})
}
