package profiles

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/entity"
	"github.com/joseph-ayodele/vitals-tracker/internal/repository"
)

// Service handles profile business logic.
type Service struct {
	profileRepo repository.ProfileRepository
	logger      *slog.Logger
}

// NewService creates a new profile service.
func NewService(profileRepo repository.ProfileRepository, logger *slog.Logger) *Service {
	return &Service{
		profileRepo: profileRepo,
		logger:      logger,
	}
}

// CreateProfileRequest represents profile creation parameters.
type CreateProfileRequest struct {
	Name string
}

// CreateProfile returns the named profile, creating it on first use.
func (s *Service) CreateProfile(ctx context.Context, req CreateProfileRequest) (*entity.Profile, error) {
	name := strings.TrimSpace(req.Name)
	if err := common.NewValidator().Field("name", name, common.Required, common.MaxLength(100)).Err(); err != nil {
		return nil, err
	}

	p, existed, err := s.profileRepo.GetOrCreateByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get or create profile: %w", err)
	}
	if existed {
		s.logger.Info("profile already exists", "profile_id", p.ID, "name", p.Name)
	} else {
		s.logger.Info("profile created successfully", "profile_id", p.ID, "name", p.Name)
	}
	return p, nil
}

// ListProfiles returns all profiles.
func (s *Service) ListProfiles(ctx context.Context) ([]*entity.Profile, error) {
	plist, err := s.profileRepo.ListProfiles(ctx)
	if err != nil {
		// DB error already logged in repository layer
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	s.logger.Info("profiles listed successfully", "count", len(plist))
	return plist, nil
}

// Require fails with common.ErrNotFound unless the profile exists.
func (s *Service) Require(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return common.NewAppError("INVALID_ARGUMENT", "profile_id is required", common.ErrInvalidInput)
	}
	ok, err := s.profileRepo.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("check profile: %w", err)
	}
	if !ok {
		return fmt.Errorf("profile %s: %w", id, common.ErrNotFound)
	}
	return nil
}
