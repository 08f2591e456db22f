package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	projectserrors "plotbook/internal/projects/errors"
	"plotbook/pkg/config"
	apperrors "plotbook/pkg/errors"
	"plotbook/pkg/logger"
	"plotbook/pkg/model"
)

type fakeProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*model.Project
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{projects: make(map[string]*model.Project)}
}

func (f *fakeProjectRepo) Create(ctx context.Context, project *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	project.ID = primitive.NewObjectID().Hex()
	c := *project
	f.projects[project.ID] = &c
	return nil
}

func (f *fakeProjectRepo) FindByID(ctx context.Context, id string) (*model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, projectserrors.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (f *fakeProjectRepo) UpdateSettings(ctx context.Context, id string, holdTimeHours int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return projectserrors.ErrNotFound
	}
	p.HoldTimeHours = holdTimeHours
	return nil
}

func newTestProjectService(repo *fakeProjectRepo) ProjectService {
	return NewProjectService(repo, &config.Config{
		Log:                  logger.Discard(),
		DefaultHoldTimeHours: 24,
	})
}

func TestCreate_DefaultsHoldTime(t *testing.T) {
	svc := newTestProjectService(newFakeProjectRepo())

	project := &model.Project{Name: "Green Meadows Phase 2"}
	if err := svc.Create(context.Background(), project); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if project.HoldTimeHours != 24 {
		t.Errorf("expected default hold time 24h, got %d", project.HoldTimeHours)
	}
}

func TestCreate_RejectsOutOfRangeHoldTime(t *testing.T) {
	svc := newTestProjectService(newFakeProjectRepo())

	project := &model.Project{Name: "Green Meadows", HoldTimeHours: 200}
	err := svc.Create(context.Background(), project)
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUpdateSettings(t *testing.T) {
	repo := newFakeProjectRepo()
	svc := newTestProjectService(repo)

	project := &model.Project{Name: "Green Meadows", HoldTimeHours: 24}
	if err := svc.Create(context.Background(), project); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := svc.UpdateSettings(context.Background(), project.ID,
		&model.ProjectSettingsUpdate{HoldTimeHours: 48}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	stored, err := svc.GetByID(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.HoldTimeHours != 48 {
		t.Errorf("expected 48, got %d", stored.HoldTimeHours)
	}
}

func TestUpdateSettings_UnknownProject(t *testing.T) {
	svc := newTestProjectService(newFakeProjectRepo())

	err := svc.UpdateSettings(context.Background(), primitive.NewObjectID().Hex(),
		&model.ProjectSettingsUpdate{HoldTimeHours: 48})
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestHoldTime_UsesProjectSetting(t *testing.T) {
	repo := newFakeProjectRepo()
	svc := newTestProjectService(repo)

	project := &model.Project{Name: "Green Meadows", HoldTimeHours: 72}
	if err := svc.Create(context.Background(), project); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	d, err := svc.HoldTime(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("hold time failed: %v", err)
	}
	if d != 72*time.Hour {
		t.Errorf("expected 72h, got %v", d)
	}
}

func TestHoldTime_UnknownProject(t *testing.T) {
	svc := newTestProjectService(newFakeProjectRepo())

	_, err := svc.HoldTime(context.Background(), primitive.NewObjectID().Hex())
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
