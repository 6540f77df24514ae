package farms

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbonmrv/mrv-backend/internal/auth"
	"carbonmrv/mrv-backend/internal/estimation"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, farm *Farm) error {
	args := m.Called(ctx, farm)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Farm, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Farm), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, filter FarmFilter) ([]Farm, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]Farm), args.Get(1).(int64), args.Error(2)
}

func (m *MockRepository) Update(ctx context.Context, farm *Farm) error {
	args := m.Called(ctx, farm)
	return args.Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) CountSubmissions(ctx context.Context, farmID uuid.UUID) (int64, error) {
	args := m.Called(ctx, farmID)
	return args.Get(0).(int64), args.Error(1)
}

const squareBoundary = `{"type":"Polygon","coordinates":[[[0,0],[0.009,0],[0.009,0.009],[0,0.009],[0,0]]]}`

func farmerPrincipal() *auth.Principal {
	return &auth.Principal{AuthID: "auth-farmer", FarmerID: uuid.New(), Role: auth.RoleFarmer}
}

func TestCreateFarm(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, zap.NewNop())
	ctx := context.Background()
	principal := farmerPrincipal()

	repo.On("Create", ctx, mock.AnythingOfType("*farms.Farm")).Return(nil)

	farm, err := service.CreateFarm(ctx, principal, CreateFarmRequest{
		Name:        "North Paddy",
		CropType:    estimation.CropRice,
		LandSize:    2.5,
		GPSLocation: &GPSLocation{X: 77.2, Y: 28.6},
		Practices:   estimation.Practices{WaterManagement: estimation.WaterAlternateWettingDrying},
	})
	require.NoError(t, err)

	assert.Equal(t, principal.FarmerID, farm.FarmerID)
	assert.Equal(t, 2.5, farm.LandSize)
	assert.Equal(t, estimation.WaterAlternateWettingDrying, farm.Practices.Data().WaterManagement)
	assert.NotNil(t, farm.Images)
	repo.AssertExpectations(t)
}

func TestCreateFarm_DerivesFromBoundary(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, zap.NewNop())
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*farms.Farm")).Return(nil)

	farm, err := service.CreateFarm(ctx, farmerPrincipal(), CreateFarmRequest{
		Name:     "Grove",
		CropType: estimation.CropAgroforestry,
		Boundary: json.RawMessage(squareBoundary),
	})
	require.NoError(t, err)

	assert.InDelta(t, 100.2, farm.LandSize, 1.0)
	require.NotNil(t, farm.GPSLocation)
	assert.InDelta(t, 0.0045, farm.GPSLocation.X, 1e-6)
	assert.InDelta(t, 0.0045, farm.GPSLocation.Y, 1e-6)
	assert.NotEmpty(t, farm.Boundary)
}

func TestCreateFarm_Validation(t *testing.T) {
	service := NewService(new(MockRepository), zap.NewNop())
	ctx := context.Background()
	principal := farmerPrincipal()

	tests := []struct {
		name string
		req  CreateFarmRequest
	}{
		{"short name", CreateFarmRequest{Name: "A", CropType: "rice", LandSize: 1}},
		{"missing crop", CreateFarmRequest{Name: "Plot", LandSize: 1}},
		{"too small", CreateFarmRequest{Name: "Plot", CropType: "rice", LandSize: 0.05}},
		{"zero size", CreateFarmRequest{Name: "Plot", CropType: "rice"}},
		{"bad latitude", CreateFarmRequest{Name: "Plot", CropType: "rice", LandSize: 1, GPSLocation: &GPSLocation{X: 10, Y: 95}}},
		{"bad boundary", CreateFarmRequest{Name: "Plot", CropType: "rice", Boundary: json.RawMessage(`{"type":"Point","coordinates":[1,2]}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateFarm(ctx, principal, tt.req)
			assert.ErrorIs(t, err, ErrInvalidFarm)
		})
	}
}

func TestCreateFarm_RequiresProfile(t *testing.T) {
	service := NewService(new(MockRepository), zap.NewNop())

	_, err := service.CreateFarm(context.Background(), &auth.Principal{AuthID: "new"}, CreateFarmRequest{Name: "Plot", CropType: "rice", LandSize: 1})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListFarms_ScopesFarmers(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, zap.NewNop())
	ctx := context.Background()
	principal := farmerPrincipal()
	other := uuid.New()

	repo.On("List", ctx, mock.MatchedBy(func(f FarmFilter) bool {
		return f.FarmerID != nil && *f.FarmerID == principal.FarmerID && f.Page == 1 && f.PageSize == defaultPageSize
	})).Return([]Farm{{ID: uuid.New(), FarmerID: principal.FarmerID}}, int64(1), nil)

	list, err := service.ListFarms(ctx, principal, FarmFilter{FarmerID: &other})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
	repo.AssertExpectations(t)
}

func TestListFarms_VerifierSeesAll(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, zap.NewNop())
	ctx := context.Background()
	verifier := &auth.Principal{AuthID: "v", FarmerID: uuid.New(), Role: auth.RoleVerifier}

	repo.On("List", ctx, mock.MatchedBy(func(f FarmFilter) bool {
		return f.FarmerID == nil && f.PageSize == maxPageSize
	})).Return([]Farm{}, int64(0), nil)

	_, err := service.ListFarms(ctx, verifier, FarmFilter{PageSize: 1000})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestUpdateAndDelete_OwnerOnly(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, zap.NewNop())
	ctx := context.Background()
	farm := &Farm{ID: uuid.New(), FarmerID: uuid.New(), Name: "Plot", CropType: "rice", LandSize: 1}

	repo.On("GetByID", ctx, farm.ID).Return(farm, nil)

	verifier := &auth.Principal{AuthID: "v", FarmerID: uuid.New(), Role: auth.RoleVerifier}
	name := "Renamed"
	_, err := service.UpdateFarm(ctx, verifier, farm.ID, UpdateFarmRequest{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)

	err = service.DeleteFarm(ctx, verifier, farm.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// verifiers can still read it
	got, err := service.GetFarm(ctx, verifier, farm.ID)
	require.NoError(t, err)
	assert.Equal(t, farm.ID, got.ID)

	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestUpdateFarm(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, zap.NewNop())
	ctx := context.Background()
	principal := farmerPrincipal()
	farm := &Farm{ID: uuid.New(), FarmerID: principal.FarmerID, Name: "Plot", CropType: "rice", LandSize: 1}

	repo.On("GetByID", ctx, farm.ID).Return(farm, nil)
	repo.On("Update", ctx, farm).Return(nil)

	size := 3.0
	practices := estimation.Practices{AgroforestryMethods: []string{"boundary_planting"}}
	updated, err := service.UpdateFarm(ctx, principal, farm.ID, UpdateFarmRequest{LandSize: &size, Practices: &practices})
	require.NoError(t, err)
	assert.Equal(t, 3.0, updated.LandSize)
	assert.Equal(t, []string{"boundary_planting"}, updated.Practices.Data().AgroforestryMethods)

	tooSmall := 0.0
	_, err = service.UpdateFarm(ctx, principal, farm.ID, UpdateFarmRequest{LandSize: &tooSmall})
	assert.ErrorIs(t, err, ErrInvalidFarm)
}

func TestDeleteFarm(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, zap.NewNop())
	ctx := context.Background()
	principal := farmerPrincipal()

	unused := &Farm{ID: uuid.New(), FarmerID: principal.FarmerID, Name: "Fallow", CropType: "rice", LandSize: 1}
	repo.On("GetByID", ctx, unused.ID).Return(unused, nil)
	repo.On("CountSubmissions", ctx, unused.ID).Return(int64(0), nil)
	repo.On("Delete", ctx, unused.ID).Return(nil)

	require.NoError(t, service.DeleteFarm(ctx, principal, unused.ID))

	submitted := &Farm{ID: uuid.New(), FarmerID: principal.FarmerID, Name: "Paddy", CropType: "rice", LandSize: 2}
	repo.On("GetByID", ctx, submitted.ID).Return(submitted, nil)
	repo.On("CountSubmissions", ctx, submitted.ID).Return(int64(2), nil)

	err := service.DeleteFarm(ctx, principal, submitted.ID)
	assert.ErrorIs(t, err, ErrConflict)

	repo.AssertCalled(t, "Delete", ctx, unused.ID)
	repo.AssertNotCalled(t, "Delete", ctx, submitted.ID)
}

func TestOnChange(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, zap.NewNop())
	ctx := context.Background()
	principal := farmerPrincipal()

	var changed []uuid.UUID
	service.OnChange(func(farmerID uuid.UUID) { changed = append(changed, farmerID) })

	repo.On("Create", ctx, mock.AnythingOfType("*farms.Farm")).Return(nil)
	farm, err := service.CreateFarm(ctx, principal, CreateFarmRequest{Name: "North Paddy", CropType: "rice", LandSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{principal.FarmerID}, changed)

	repo.On("GetByID", ctx, farm.ID).Return(farm, nil)
	repo.On("Update", ctx, farm).Return(nil)
	name := "South Paddy"
	_, err = service.UpdateFarm(ctx, principal, farm.ID, UpdateFarmRequest{Name: &name})
	require.NoError(t, err)
	assert.Len(t, changed, 2)

	repo.On("CountSubmissions", ctx, farm.ID).Return(int64(0), nil)
	repo.On("Delete", ctx, farm.ID).Return(nil)
	require.NoError(t, service.DeleteFarm(ctx, principal, farm.ID))
	assert.Equal(t, []uuid.UUID{principal.FarmerID, principal.FarmerID, principal.FarmerID}, changed)

	// failed writes leave the dashboard alone
	_, err = service.CreateFarm(ctx, principal, CreateFarmRequest{Name: "x", CropType: "rice", LandSize: 2})
	assert.ErrorIs(t, err, ErrInvalidFarm)
	assert.Len(t, changed, 3)
}

func TestHandler_DeleteConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)

	repo := new(MockRepository)
	principal := farmerPrincipal()
	router := gin.New()
	api := router.Group("/api/v1", func(c *gin.Context) {
		auth.SetPrincipal(c, principal)
	})
	NewHandler(NewService(repo, zap.NewNop()), zap.NewNop()).RegisterRoutes(api)

	farm := &Farm{ID: uuid.New(), FarmerID: principal.FarmerID, Name: "Paddy", CropType: "rice", LandSize: 2}
	repo.On("GetByID", mock.Anything, farm.ID).Return(farm, nil)
	repo.On("CountSubmissions", mock.Anything, farm.ID).Return(int64(1), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/farms/"+farm.ID.String(), nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestFarmEstimationInput(t *testing.T) {
	farm := &Farm{CropType: "rice", LandSize: 5}

	input := farm.EstimationInput()
	assert.Equal(t, "rice", input.CropType)
	assert.Equal(t, 5.0, input.LandSizeHectares)
	require.NotNil(t, input.Practices)
}

func TestHandler_CreateAndGet(t *testing.T) {
	gin.SetMode(gin.TestMode)

	repo := new(MockRepository)
	service := NewService(repo, zap.NewNop())
	handler := NewHandler(service, zap.NewNop())
	principal := farmerPrincipal()

	router := gin.New()
	api := router.Group("/api/v1", func(c *gin.Context) {
		auth.SetPrincipal(c, principal)
	})
	handler.RegisterRoutes(api)

	repo.On("Create", mock.Anything, mock.AnythingOfType("*farms.Farm")).Return(nil)

	body := `{"name":"North Paddy","crop_type":"rice","land_size":2,"practices":{"water_management":"rainfed"}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/farms", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	var created Farm
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "North Paddy", created.Name)

	repo.On("GetByID", mock.Anything, mock.Anything).Return(nil, ErrNotFound)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/farms/"+uuid.NewString(), nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/farms/not-a-uuid", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
