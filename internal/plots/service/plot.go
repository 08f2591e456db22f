package service

import (
	"context"
	"errors"
	"sync"

	plotserrors "plotbook/internal/plots/errors"
	"plotbook/internal/plots/repository"
	"plotbook/pkg/config"
	apperrors "plotbook/pkg/errors"
	"plotbook/pkg/model"
	"plotbook/pkg/sanitizer"
)

type PlotService interface {
	Create(ctx context.Context, plot *model.Plot) error
	GetByID(ctx context.Context, id string) (*model.Plot, error)
	ListByProject(ctx context.Context, projectID string, filter *model.PlotFilter, limit int, offset int64) ([]*model.Plot, int64, error)
	Archive(ctx context.Context, id string) error
}

type plotService struct {
	repo repository.PlotRepository
	cfg  *config.Config
}

func NewPlotService(repo repository.PlotRepository, cfg *config.Config) PlotService {
	return &plotService{
		repo: repo,
		cfg:  cfg,
	}
}

func (s *plotService) Create(ctx context.Context, plot *model.Plot) error {
	plot.PlotNumber = sanitizer.NormalizePlotNumber(plot.PlotNumber)
	if plot.PlotNumber == "" {
		return apperrors.Validation("Plot number is required", nil)
	}
	if plot.ProjectID == "" {
		return apperrors.InvalidInput("Project ID cannot be empty")
	}
	if plot.Area <= 0 || plot.Price <= 0 {
		return apperrors.Validation("Area and price must be positive", map[string]any{
			"area":  plot.Area,
			"price": plot.Price,
		})
	}
	if plot.AllocationStatus == "" {
		plot.AllocationStatus = model.PlotAvailable
	}

	if err := s.repo.Create(ctx, plot); err != nil {
		if errors.Is(err, plotserrors.ErrDuplicatePlotNumber) {
			return apperrors.Conflict("Plot number already exists in this project")
		}
		s.cfg.Log.Error("Failed to create plot", "project_id", plot.ProjectID, "error", err)
		return apperrors.Internal("Failed to create plot", err)
	}

	s.cfg.Log.Info("Plot created successfully",
		"id", plot.ID,
		"project_id", plot.ProjectID,
		"plot_number", plot.PlotNumber,
	)
	return nil
}

func (s *plotService) GetByID(ctx context.Context, id string) (*model.Plot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Plot ID cannot be empty")
	}

	plot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, plotserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Plot", id)
		}
		if errors.Is(err, plotserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid plot ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve plot", err)
	}

	return plot, nil
}

func (s *plotService) ListByProject(ctx context.Context, projectID string, filter *model.PlotFilter, limit int, offset int64) ([]*model.Plot, int64, error) {
	if projectID == "" {
		return nil, 0, apperrors.InvalidInput("Project ID cannot be empty")
	}

	var count int64
	var plots []*model.Plot
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByProject(ctx, projectID, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count plots", "project_id", projectID, "error", errCount)
			errCount = apperrors.Internal("Failed to count plots", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		plots, errFind = s.repo.FindByProject(ctx, projectID, filter, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list plots", "project_id", projectID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve plots", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return plots, count, nil
}

// Archive soft-deletes a plot. Plots referenced by bookings are never hard
// deleted; an archived plot stops accepting holds but stays readable. Sold
// plots may be archived: their booking is complete and archival just retires
// the inventory entry.
func (s *plotService) Archive(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Plot ID cannot be empty")
	}

	plot, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch plot.AllocationStatus {
	case model.PlotOnHold:
		return apperrors.InvalidState("Cannot archive a plot with an active hold")
	case model.PlotBooked:
		return apperrors.InvalidState("Cannot archive a plot with a live booking")
	}

	if err := s.repo.SetArchived(ctx, id, true); err != nil {
		if errors.Is(err, plotserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Plot", id)
		}
		s.cfg.Log.Error("Failed to archive plot", "id", id, "error", err)
		return apperrors.Internal("Failed to archive plot", err)
	}

	s.cfg.Log.Info("Plot archived", "id", id)
	return nil
}
