package sync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"fieldsync/internal/domain/entity"
	"fieldsync/internal/domain/sync"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) GetEntities(ctx context.Context, table entity.Table, cursor string, limit int) (*sync.Page, error) {
	args := m.Called(ctx, table, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.Page), args.Error(1)
}

func (m *MockService) ProcessBatch(ctx context.Context, table entity.Table, records []entity.Record) (*sync.BatchResult, error) {
	args := m.Called(ctx, table, records)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.BatchResult), args.Error(1)
}

func setup(t *testing.T) (humatest.TestAPI, *MockService) {
	t.Helper()
	_, api := humatest.New(t)
	svc := new(MockService)
	NewHandler(svc, slog.Default(), huma.Middlewares{}).SetupRoutes(api)
	return api, svc
}

func TestHandler_GetEntities(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		setupMock  func(m *MockService)
		wantStatus int
		check      func(t *testing.T, body map[string]json.RawMessage)
	}{
		{
			name: "page with cursor",
			url:  "/api/sync?entity=researches&limit=1",
			setupMock: func(m *MockService) {
				m.On("GetEntities", mock.Anything, entity.TableResearches, "", 1).
					Return(&sync.Page{Records: []entity.Record{{"id": "r1", "title": "Soil"}}, NextCursor: "r1"}, nil)
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]json.RawMessage) {
				var recs []entity.Record
				require.NoError(t, json.Unmarshal(body["researches"], &recs))
				require.Len(t, recs, 1)
				assert.Equal(t, "Soil", recs[0]["title"])
				assert.JSONEq(t, `"r1"`, string(body["next_cursor"]))
			},
		},
		{
			name: "empty last page",
			url:  "/api/sync?entity=users&cursor=u9",
			setupMock: func(m *MockService) {
				m.On("GetEntities", mock.Anything, entity.TableUsers, "u9", 0).Return(&sync.Page{}, nil)
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]json.RawMessage) {
				assert.JSONEq(t, `[]`, string(body["users"]))
				_, ok := body["next_cursor"]
				assert.False(t, ok)
			},
		},
		{
			name:       "unknown entity",
			url:        "/api/sync?entity=planets",
			setupMock:  func(m *MockService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "service error",
			url:  "/api/sync?entity=users",
			setupMock: func(m *MockService) {
				m.On("GetEntities", mock.Anything, entity.TableUsers, "", 0).Return(nil, errors.New("db down"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, svc := setup(t)
			tt.setupMock(svc)

			resp := api.Get(tt.url)
			assert.Equal(t, tt.wantStatus, resp.Code, resp.Body.String())

			if tt.check != nil {
				var body map[string]json.RawMessage
				require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
				tt.check(t, body)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_BatchSync(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setupMock  func(m *MockService)
		wantStatus int
		wantBody   string
	}{
		{
			name: "accepted",
			body: `[{"id":"r1","title":"Soil"}]`,
			setupMock: func(m *MockService) {
				m.On("ProcessBatch", mock.Anything, entity.TableResearches, mock.Anything).
					Return(&sync.BatchResult{Status: "Ok", Processed: 1}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `"processed":1`,
		},
		{
			name: "partially rejected",
			body: `[{"id":"r1","title":"Soil"},{"id":"r2"}]`,
			setupMock: func(m *MockService) {
				m.On("ProcessBatch", mock.Anything, entity.TableResearches, mock.Anything).
					Return(&sync.BatchResult{
						Status:    "Ok",
						Processed: 1,
						Failed:    1,
						Rejected:  []sync.RejectedRecord{{ID: "r2", Error: "title is required"}},
					}, nil)
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `"rejected":[{"id":"r2","error":"title is required"}]`,
		},
		{
			name: "empty batch",
			body: `[]`,
			setupMock: func(m *MockService) {
				m.On("ProcessBatch", mock.Anything, entity.TableResearches, mock.Anything).Return(nil, sync.ErrEmptyBatch)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "too large",
			body: `[{"id":"r1","title":"Soil"}]`,
			setupMock: func(m *MockService) {
				m.On("ProcessBatch", mock.Anything, entity.TableResearches, mock.Anything).Return(nil, sync.ErrBatchTooLarge)
			},
			wantStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, svc := setup(t)
			tt.setupMock(svc)

			resp := api.Patch("/api/sync?entity=researches", strings.NewReader(tt.body))
			assert.Equal(t, tt.wantStatus, resp.Code, resp.Body.String())
			if tt.wantBody != "" {
				assert.Contains(t, resp.Body.String(), tt.wantBody)
			}
			svc.AssertExpectations(t)
		})
	}
}
