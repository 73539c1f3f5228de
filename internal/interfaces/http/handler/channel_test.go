package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appbilling "github.com/partnerbill/backend/internal/application/billing"
	"github.com/partnerbill/backend/internal/domain/billing"
	"github.com/partnerbill/backend/internal/domain/shared"
)

// stubChannelRepo is a map-backed ChannelRepository for handler tests
type stubChannelRepo struct {
	mu       sync.Mutex
	channels map[uuid.UUID]*billing.Channel
}

func newStubChannelRepo() *stubChannelRepo {
	return &stubChannelRepo{channels: make(map[uuid.UUID]*billing.Channel)}
}

func (r *stubChannelRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*billing.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[id]
	if !ok || ch.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return ch, nil
}

func (r *stubChannelRepo) FindByCode(_ context.Context, tenantID uuid.UUID, code string) (*billing.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.channels {
		if ch.TenantID == tenantID && ch.Code == code {
			return ch, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *stubChannelRepo) FindAll(_ context.Context, tenantID uuid.UUID, filter billing.ChannelFilter) (*shared.Paginated[*billing.Channel], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*billing.Channel
	for _, ch := range r.channels {
		if ch.TenantID != tenantID {
			continue
		}
		if filter.Search != "" && !strings.Contains(ch.Code, filter.Search) && !strings.Contains(ch.Name, filter.Search) {
			continue
		}
		items = append(items, ch)
	}
	return shared.NewPaginated(items, int64(len(items)), filter.Page, filter.PageSize), nil
}

func (r *stubChannelRepo) FindActive(_ context.Context, tenantID uuid.UUID) ([]*billing.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*billing.Channel
	for _, ch := range r.channels {
		if ch.TenantID == tenantID && ch.Status == billing.ChannelStatusActive {
			items = append(items, ch)
		}
	}
	return items, nil
}

func (r *stubChannelRepo) Save(_ context.Context, ch *billing.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.ID] = ch
	return nil
}

func (r *stubChannelRepo) SaveWithLock(ctx context.Context, ch *billing.Channel) error {
	return r.Save(ctx, ch)
}

func (r *stubChannelRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, id)
	return nil
}

// stubConfigRepo is a map-backed StatementConfigRepository for handler tests
type stubConfigRepo struct {
	mu      sync.Mutex
	configs map[uuid.UUID]*billing.StatementConfig
}

func newStubConfigRepo() *stubConfigRepo {
	return &stubConfigRepo{configs: make(map[uuid.UUID]*billing.StatementConfig)}
}

func (r *stubConfigRepo) FindByChannel(_ context.Context, tenantID, channelID uuid.UUID) (*billing.StatementConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[channelID]
	if !ok || cfg.TenantID != tenantID {
		return nil, nil
	}
	return cfg, nil
}

func (r *stubConfigRepo) Save(_ context.Context, cfg *billing.StatementConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.ChannelID] = cfg
	return nil
}

func (r *stubConfigRepo) Delete(_ context.Context, tenantID, channelID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.configs, channelID)
	return nil
}

type channelTestEnv struct {
	router      *gin.Engine
	channelRepo *stubChannelRepo
	configRepo  *stubConfigRepo
	tenantID    uuid.UUID
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ...shared.DomainEvent) error { return nil }

func setupChannelTestRouter(t *testing.T) *channelTestEnv {
	t.Helper()

	channelRepo := newStubChannelRepo()
	configRepo := newStubConfigRepo()
	logger := zap.NewNop()

	channelSvc := appbilling.NewChannelService(channelRepo, configRepo, nopPublisher{}, logger)
	configSvc := appbilling.NewConfigService(channelRepo, configRepo, nil, logger)
	h := NewChannelHandler(channelSvc, configSvc)

	router := gin.New()
	api := router.Group("/api/v1")
	h.RegisterRoutes(api)

	return &channelTestEnv{
		router:      router,
		channelRepo: channelRepo,
		configRepo:  configRepo,
		tenantID:    uuid.New(),
	}
}

func (env *channelTestEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", env.tenantID.String())

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func (env *channelTestEnv) seedChannel(t *testing.T) *billing.Channel {
	t.Helper()
	ch, err := billing.NewChannel(env.tenantID, "CH-001", "Acme Partner", "billing@acme.test", billing.ChannelTypePartner)
	require.NoError(t, err)
	ch.ClearDomainEvents()
	require.NoError(t, env.channelRepo.Save(context.Background(), ch))
	return ch
}

func TestChannelHandler_Create(t *testing.T) {
	env := setupChannelTestRouter(t)

	t.Run("creates channel", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/channels", gin.H{
			"code":          "CH-100",
			"name":          "Dropship One",
			"contact_email": "ops@dropship.test",
			"type":          "DROPSHIP",
		})

		require.Equal(t, http.StatusCreated, w.Code)
		var resp struct {
			Success bool                          `json:"success"`
			Data    *appbilling.ChannelResponse   `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "CH-100", resp.Data.Code)
		assert.Equal(t, "DROPSHIP", resp.Data.Type)
		assert.Equal(t, "ACTIVE", resp.Data.Status)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/channels", gin.H{"code": "CH-101"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/channels", gin.H{
			"code":          "CH-102",
			"name":          "Bad Type",
			"contact_email": "x@y.test",
			"type":          "WHOLESALE",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate code conflicts", func(t *testing.T) {
		payload := gin.H{
			"code":          "CH-DUP",
			"name":          "First",
			"contact_email": "a@b.test",
			"type":          "PARTNER",
		}
		w := env.do(t, http.MethodPost, "/api/v1/channels", payload)
		require.Equal(t, http.StatusCreated, w.Code)

		w = env.do(t, http.MethodPost, "/api/v1/channels", payload)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestChannelHandler_GetByID(t *testing.T) {
	env := setupChannelTestRouter(t)
	ch := env.seedChannel(t)

	t.Run("returns channel", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/channels/"+ch.ID.String(), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data *appbilling.ChannelResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, ch.ID, resp.Data.ID)
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/channels/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id is 400", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/channels/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestChannelHandler_List(t *testing.T) {
	env := setupChannelTestRouter(t)
	env.seedChannel(t)

	w := env.do(t, http.MethodGet, "/api/v1/channels?page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    []struct {
			Code string `json:"code"`
		} `json:"data"`
		Meta struct {
			Total    int64 `json:"total"`
			Page     int   `json:"page"`
			PageSize int   `json:"page_size"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "CH-001", resp.Data[0].Code)
	assert.Equal(t, int64(1), resp.Meta.Total)
	assert.Equal(t, 1, resp.Meta.Page)
	assert.Equal(t, 10, resp.Meta.PageSize)
}

func TestChannelHandler_PauseAndActivate(t *testing.T) {
	env := setupChannelTestRouter(t)
	ch := env.seedChannel(t)

	w := env.do(t, http.MethodPost, "/api/v1/channels/"+ch.ID.String()+"/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data *appbilling.ChannelResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "PAUSED", resp.Data.Status)

	w = env.do(t, http.MethodPost, "/api/v1/channels/"+ch.ID.String()+"/activate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ACTIVE", resp.Data.Status)
}

func TestChannelHandler_Config(t *testing.T) {
	env := setupChannelTestRouter(t)
	ch := env.seedChannel(t)
	base := "/api/v1/channels/" + ch.ID.String() + "/billing/config"

	t.Run("get creates defaults lazily", func(t *testing.T) {
		w := env.do(t, http.MethodGet, base, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data *appbilling.StatementConfigResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 14, resp.Data.BillingCycleDays)
		assert.Equal(t, 7, resp.Data.EscalationDays)
		assert.Nil(t, resp.Data.BalanceThreshold)
	})

	t.Run("update applies changes", func(t *testing.T) {
		w := env.do(t, http.MethodPut, base, gin.H{
			"billing_cycle_days":   30,
			"balance_threshold":    500.0,
			"payment_instructions": "Wire to account 12345",
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data *appbilling.StatementConfigResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 30, resp.Data.BillingCycleDays)
		require.NotNil(t, resp.Data.BalanceThreshold)
		assert.Equal(t, "500", resp.Data.BalanceThreshold.String())
		assert.Equal(t, "Wire to account 12345", resp.Data.PaymentInstructions)
	})

	t.Run("clear flag removes threshold", func(t *testing.T) {
		w := env.do(t, http.MethodPut, base, gin.H{"clear_balance_threshold": true})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data *appbilling.StatementConfigResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Nil(t, resp.Data.BalanceThreshold)
	})

	t.Run("rejects invalid cycle", func(t *testing.T) {
		w := env.do(t, http.MethodPut, base, gin.H{"billing_cycle_days": 0})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestChannelHandler_Delete(t *testing.T) {
	env := setupChannelTestRouter(t)
	ch := env.seedChannel(t)

	w := env.do(t, http.MethodDelete, "/api/v1/channels/"+ch.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/channels/"+ch.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
