package service

import (
	"context"
	"errors"
	"time"

	projectserrors "plotbook/internal/projects/errors"
	"plotbook/internal/projects/repository"
	"plotbook/pkg/config"
	apperrors "plotbook/pkg/errors"
	"plotbook/pkg/model"
	"plotbook/pkg/sanitizer"
)

type ProjectService interface {
	Create(ctx context.Context, project *model.Project) error
	GetByID(ctx context.Context, id string) (*model.Project, error)
	UpdateSettings(ctx context.Context, id string, updates *model.ProjectSettingsUpdate) error
	HoldTime(ctx context.Context, id string) (time.Duration, error)
}

type projectService struct {
	repo repository.ProjectRepository
	cfg  *config.Config
}

func NewProjectService(repo repository.ProjectRepository, cfg *config.Config) ProjectService {
	return &projectService{
		repo: repo,
		cfg:  cfg,
	}
}

func (s *projectService) Create(ctx context.Context, project *model.Project) error {
	project.Name = sanitizer.NormalizeName(project.Name)
	if project.Name == "" {
		return apperrors.Validation("Project name is required", nil)
	}
	if project.HoldTimeHours == 0 {
		project.HoldTimeHours = s.cfg.DefaultHoldTimeHours
	}
	if project.HoldTimeHours < 1 || project.HoldTimeHours > 168 {
		return apperrors.Validation("Hold time must be between 1 and 168 hours", map[string]any{
			"hold_time_hours": project.HoldTimeHours,
		})
	}

	if err := s.repo.Create(ctx, project); err != nil {
		s.cfg.Log.Error("Failed to create project", "error", err)
		return apperrors.Internal("Failed to create project", err)
	}

	s.cfg.Log.Info("Project created successfully", "id", project.ID, "name", project.Name)
	return nil
}

func (s *projectService) GetByID(ctx context.Context, id string) (*model.Project, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Project ID cannot be empty")
	}

	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, projectserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Project", id)
		}
		if errors.Is(err, projectserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid project ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve project", err)
	}

	return project, nil
}

func (s *projectService) UpdateSettings(ctx context.Context, id string, updates *model.ProjectSettingsUpdate) error {
	if id == "" {
		return apperrors.InvalidInput("Project ID cannot be empty")
	}
	if updates.HoldTimeHours < 1 || updates.HoldTimeHours > 168 {
		return apperrors.Validation("Hold time must be between 1 and 168 hours", map[string]any{
			"hold_time_hours": updates.HoldTimeHours,
		})
	}

	err := s.repo.UpdateSettings(ctx, id, updates.HoldTimeHours)
	if err != nil {
		if errors.Is(err, projectserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Project", id)
		}
		if errors.Is(err, projectserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid project ID format")
		}
		s.cfg.Log.Error("Failed to update project settings", "id", id, "error", err)
		return apperrors.Internal("Failed to update project settings", err)
	}

	s.cfg.Log.Info("Project settings updated", "id", id, "hold_time_hours", updates.HoldTimeHours)
	return nil
}

// HoldTime resolves the hold window for a project, falling back to the
// service default when the project has no explicit setting.
func (s *projectService) HoldTime(ctx context.Context, id string) (time.Duration, error) {
	project, err := s.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}

	if project.HoldTimeHours < 1 {
		return s.cfg.DefaultHoldTime(), nil
	}
	return project.HoldTime(), nil
}
