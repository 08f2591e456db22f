package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"

	apperrors "plotbook/pkg/errors"
	"plotbook/pkg/logger"
	"plotbook/pkg/model"
)

// Mock service for testing
type mockHoldService struct {
	placeFunc   func(ctx context.Context, plotID, brokerID string) (*model.Hold, error)
	releaseFunc func(ctx context.Context, plotID string) (*model.Hold, error)
}

func (m *mockHoldService) Place(ctx context.Context, plotID, brokerID string) (*model.Hold, error) {
	if m.placeFunc != nil {
		return m.placeFunc(ctx, plotID, brokerID)
	}
	return &model.Hold{}, nil
}

func (m *mockHoldService) Release(ctx context.Context, plotID string) (*model.Hold, error) {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, plotID)
	}
	return &model.Hold{}, nil
}

func (m *mockHoldService) Convert(ctx context.Context, holdID string) (*model.Hold, error) {
	return nil, nil
}

func (m *mockHoldService) GetByID(ctx context.Context, id string) (*model.Hold, error) {
	return nil, nil
}

func (m *mockHoldService) ListActiveByProject(ctx context.Context, projectID string, limit int, offset int64) ([]*model.Hold, int64, error) {
	return []*model.Hold{}, 0, nil
}

func TestPlace_MissingBrokerHeader(t *testing.T) {
	h := NewHoldHandler(&mockHoldService{}, logger.Discard())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plots/id/abc/hold", nil)
	w := httptest.NewRecorder()

	h.Place(w, req, httprouter.Params{{Key: "id", Value: "abc"}})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without broker header, got %d", w.Code)
	}
}

func TestPlace_Success(t *testing.T) {
	var gotPlotID, gotBrokerID string
	mockService := &mockHoldService{
		placeFunc: func(ctx context.Context, plotID, brokerID string) (*model.Hold, error) {
			gotPlotID = plotID
			gotBrokerID = brokerID
			return &model.Hold{
				ID:        "651a1a1a1a1a1a1a1a1a1a1a",
				PlotID:    plotID,
				BrokerID:  brokerID,
				Status:    model.HoldActive,
				ExpiresAt: time.Now().Add(24 * time.Hour),
			}, nil
		},
	}
	h := NewHoldHandler(mockService, logger.Discard())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plots/id/abc/hold", nil)
	req.Header.Set("X-Broker-ID", "broker-1")
	w := httptest.NewRecorder()

	h.Place(w, req, httprouter.Params{{Key: "id", Value: "abc"}})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if gotPlotID != "abc" || gotBrokerID != "broker-1" {
		t.Errorf("service received plot=%q broker=%q", gotPlotID, gotBrokerID)
	}

	var resp struct {
		Data model.Hold `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Data.Status != model.HoldActive {
		t.Errorf("expected active hold in response, got %s", resp.Data.Status)
	}
}

func TestPlace_Conflict(t *testing.T) {
	mockService := &mockHoldService{
		placeFunc: func(ctx context.Context, plotID, brokerID string) (*model.Hold, error) {
			return nil, apperrors.Conflict("Plot is not available for hold")
		},
	}
	h := NewHoldHandler(mockService, logger.Discard())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plots/id/abc/hold", nil)
	req.Header.Set("X-Broker-ID", "broker-2")
	w := httptest.NewRecorder()

	h.Place(w, req, httprouter.Params{{Key: "id", Value: "abc"}})

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}

	var resp struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Code != apperrors.CodeConflict {
		t.Errorf("expected conflict code, got %q", resp.Code)
	}
}

func TestRelease_Success(t *testing.T) {
	mockService := &mockHoldService{
		releaseFunc: func(ctx context.Context, plotID string) (*model.Hold, error) {
			return &model.Hold{
				ID:     "651a1a1a1a1a1a1a1a1a1a1a",
				PlotID: plotID,
				Status: model.HoldReleased,
			}, nil
		},
	}
	h := NewHoldHandler(mockService, logger.Discard())

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/plots/id/abc/hold", nil)
	w := httptest.NewRecorder()

	h.Release(w, req, httprouter.Params{{Key: "id", Value: "abc"}})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data model.Hold `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Data.Status != model.HoldReleased {
		t.Errorf("expected released hold in response, got %s", resp.Data.Status)
	}
}

func TestRelease_PlotAlreadyBooked(t *testing.T) {
	mockService := &mockHoldService{
		releaseFunc: func(ctx context.Context, plotID string) (*model.Hold, error) {
			return nil, apperrors.Conflict("Plot has already been booked")
		},
	}
	h := NewHoldHandler(mockService, logger.Discard())

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/plots/id/abc/hold", nil)
	w := httptest.NewRecorder()

	h.Release(w, req, httprouter.Params{{Key: "id", Value: "abc"}})

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestRelease_NoActiveHold(t *testing.T) {
	mockService := &mockHoldService{
		releaseFunc: func(ctx context.Context, plotID string) (*model.Hold, error) {
			return nil, apperrors.NotFound("Active hold for plot")
		},
	}
	h := NewHoldHandler(mockService, logger.Discard())

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/plots/id/abc/hold", nil)
	w := httptest.NewRecorder()

	h.Release(w, req, httprouter.Params{{Key: "id", Value: "abc"}})

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
