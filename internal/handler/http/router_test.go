package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog/internal/cache"
	"github.com/utafrali/catalog/internal/domain"
	enginemem "github.com/utafrali/catalog/internal/engine/memory"
	"github.com/utafrali/catalog/internal/event"
	repomem "github.com/utafrali/catalog/internal/repository/memory"
	"github.com/utafrali/catalog/internal/service"
	storagemem "github.com/utafrali/catalog/internal/storage/memory"
	"github.com/utafrali/catalog/pkg/health"
	"github.com/utafrali/catalog/pkg/logger"
	"github.com/utafrali/catalog/pkg/middleware"
)

const testSecret = "test-secret-key-for-jwt-signing"

type testEnv struct {
	router  http.Handler
	repo    *repomem.ProductRepository
	engine  *enginemem.Engine
	storage *storagemem.Storage
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:    repomem.NewProductRepository(),
		engine:  enginemem.New(),
		storage: storagemem.New("http://minio:9000", "products"),
	}
	log := logger.Discard()
	deps := service.Deps{
		Repo:    env.repo,
		Engine:  env.engine,
		Storage: env.storage,
		Cache:   cache.NewMemoryCache(time.Minute),
		Events:  event.Noop{},
		TTLs:    cache.DefaultTTLs(),
		Logger:  log,
	}

	h := health.NewHandler()
	h.Register("catalog_store", env.repo.Ping)
	h.RegisterOptional("search_engine", env.engine.Ping)

	env.router = NewRouter(RouterConfig{
		ServiceName:      "catalog",
		Products:         service.NewProductService(deps, 0),
		Search:           service.NewSearchService(deps),
		Facets:           service.NewFacetService(deps),
		Index:            service.NewIndexService(deps),
		Health:           h,
		Auth:             middleware.HMACValidator([]byte(testSecret)),
		CORS:             middleware.DefaultCORSConfig(),
		ReindexBatchSize: 2,
		RequestTimeout:   5 * time.Second,
		Logger:           log,
	})
	return env
}

func (env *testEnv) seed(t *testing.T, products ...domain.Product) {
	t.Helper()
	ctx := context.Background()
	for i := range products {
		require.NoError(t, env.repo.Create(ctx, &products[i]))
		require.NoError(t, env.engine.Index(ctx, domain.NewSearchDocument(&products[i])))
	}
}

func newProduct(name, category string, price int64, colors ...string) domain.Product {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	return domain.Product{
		ID:        uuid.NewString(),
		Name:      name,
		Price:     price,
		Category:  category,
		Colors:    colors,
		Stock:     3,
		Images:    []string{},
		Type:      domain.ProductTypeSelling,
		Status:    domain.ProductStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func token(t *testing.T, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "user-1",
		"role": role,
		"exp":  jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func (env *testEnv) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	var body envelope
	if rr.Body.Len() > 0 && rr.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	}
	return rr, body
}

func (env *testEnv) get(t *testing.T, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return env.do(t, httptest.NewRequest(http.MethodGet, target, nil))
}

type formFile struct {
	name        string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename=%q`, f.name))
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func validFields() map[string]string {
	return map[string]string{
		"name":        "Áo sơ mi Đỏ",
		"price":       "350000",
		"description": "Áo sơ mi cotton tay dài",
		"category":    "ao",
		"colors":      "Đỏ,Trắng",
		"stock":       "8",
	}
}

func withToken(req *http.Request, tok string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+tok)
	return req
}

// --- Health ---

func TestHealth_ReadyWhileSearchDegraded(t *testing.T) {
	env := newTestEnv(t)
	env.engine.SetAvailable(false)

	rr, _ := env.get(t, "/health/ready")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp health.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, health.StatusDegraded, resp.Status)
	assert.Equal(t, health.StatusDegraded, resp.Checks["search_engine"].Status)

	rr, _ = env.get(t, "/health/live")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestPprof_NotMountedWithoutAllowlist(t *testing.T) {
	env := newTestEnv(t)
	rr, _ := env.get(t, "/debug/pprof/")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// --- Search ---

func TestSearch_CacheHeader(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, newProduct("Áo thun", "ao", 100000, "Trắng"), newProduct("Quần jean", "quan", 500000, "Xanh dương"))

	rr, body := env.get(t, "/api/v1/search?category=ao&sort=price_asc")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "MISS", rr.Header().Get(CacheHeader))

	var res domain.SearchResult
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.Equal(t, int64(1), res.Total)
	assert.Equal(t, "Áo thun", res.Products[0].Name)

	again, againBody := env.get(t, "/api/v1/search?category=ao&sort=price_asc")
	assert.Equal(t, "HIT", again.Header().Get(CacheHeader))
	assert.JSONEq(t, string(body.Data), string(againBody.Data))
}

func TestSearch_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		target string
		field  string
	}{
		{"/api/v1/search?page=abc", "page"},
		{"/api/v1/search?limit=-5", "limit"},
		{"/api/v1/search?minPrice=cheap", "minPrice"},
		{"/api/v1/search?maxPrice=1.5", "maxPrice"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rr, body := env.get(t, tt.target)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			require.NotNil(t, body.Error)
			assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
			assert.Contains(t, body.Error.Fields, tt.field)
		})
	}
}

func TestSearch_PriceRangeInverted(t *testing.T) {
	env := newTestEnv(t)
	rr, body := env.get(t, "/api/v1/search?minPrice=500&maxPrice=100")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_PARAMETER", body.Error.Code)
}

func TestSearch_PaginationLimit(t *testing.T) {
	env := newTestEnv(t)
	rr, body := env.get(t, "/api/v1/search?page=600&limit=20")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "PAGINATION_LIMIT", body.Error.Code)

	rr, body = env.get(t, "/api/v1/search?page=501&limit=20")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "PAGINATION_LIMIT", body.Error.Code)

	rr, _ = env.get(t, "/api/v1/search?page=500&limit=20")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSearch_DegradedStillOK(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, newProduct("Áo thun", "ao", 100000))
	env.engine.SetAvailable(false)

	rr, body := env.get(t, "/api/v1/search?query=ao")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "MISS", rr.Header().Get(CacheHeader))

	var res domain.SearchResult
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.Empty(t, res.Products)
	assert.Zero(t, res.Total)
}

// --- Facets ---

func TestFacets(t *testing.T) {
	env := newTestEnv(t)
	a := newProduct("Áo thun trắng", "ao", 100000, "Trắng")
	b := newProduct("Áo khoác", "ao", 900000, "Đen")
	c := newProduct("Quần jean", "quan", 1500000, "Đen")
	env.seed(t, a, b, c)

	rr, body := env.get(t, "/api/v1/facets/categories")
	require.Equal(t, http.StatusOK, rr.Code)
	var cats []domain.CategoryCount
	require.NoError(t, json.Unmarshal(body.Data, &cats))
	assert.Equal(t, []domain.CategoryCount{{Name: "ao", Count: 2}, {Name: "quan", Count: 1}}, cats)

	rr, body = env.get(t, "/api/v1/facets/colors")
	require.Equal(t, http.StatusOK, rr.Code)
	var colors []domain.ColorCount
	require.NoError(t, json.Unmarshal(body.Data, &colors))
	assert.Equal(t, domain.DefaultColors(), colors)

	rr, body = env.get(t, "/api/v1/facets/price-ranges")
	require.Equal(t, http.StatusOK, rr.Code)
	var ranges domain.PriceRanges
	require.NoError(t, json.Unmarshal(body.Data, &ranges))
	assert.Equal(t, int64(3), ranges.Stats.Count)

	rr, body = env.get(t, "/api/v1/products/"+b.ID+"/related")
	require.Equal(t, http.StatusOK, rr.Code)
	var related []domain.Product
	require.NoError(t, json.Unmarshal(body.Data, &related))
	assert.Len(t, related, 2)

	rr, body = env.get(t, "/api/v1/products/trending?limit=1")
	require.Equal(t, http.StatusOK, rr.Code)
	var trending []domain.Product
	require.NoError(t, json.Unmarshal(body.Data, &trending))
	assert.Len(t, trending, 1)

	rr, _ = env.get(t, "/api/v1/products/trending?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, body = env.get(t, "/api/v1/search/suggest?query=%C3%81o")
	require.Equal(t, http.StatusOK, rr.Code)
	var suggestions []string
	require.NoError(t, json.Unmarshal(body.Data, &suggestions))
	assert.Equal(t, []string{"Áo khoác", "Áo thun trắng"}, suggestions)

	rr, body = env.get(t, "/api/v1/index/products/"+c.ID)
	require.Equal(t, http.StatusOK, rr.Code)
	var indexed domain.Product
	require.NoError(t, json.Unmarshal(body.Data, &indexed))
	assert.Equal(t, "Quần jean", indexed.Name)
}

func TestRelated_UnknownProduct(t *testing.T) {
	env := newTestEnv(t)
	rr, body := env.get(t, "/api/v1/products/"+uuid.NewString()+"/related")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)

	rr, _ = env.get(t, "/api/v1/products/not-a-uuid/related")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestIndexedProduct_Unavailable(t *testing.T) {
	env := newTestEnv(t)
	env.engine.SetAvailable(false)

	rr, body := env.get(t, "/api/v1/index/products/"+uuid.NewString())
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
}

// --- Products ---

func TestListAndGetProducts(t *testing.T) {
	env := newTestEnv(t)
	p := newProduct("Váy hoa", "vay", 300000, "Hồng")
	env.seed(t, p, newProduct("Áo", "ao", 1, "Đen"))

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products?category=vay&per_page=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var list struct {
		Data       []domain.Product `json:"data"`
		TotalCount int              `json:"total_count"`
		PerPage    int              `json:"per_page"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Equal(t, 1, list.TotalCount)
	assert.Equal(t, 5, list.PerPage)
	assert.Equal(t, p.ID, list.Data[0].ID)

	got, body := env.get(t, "/api/v1/products/"+p.ID)
	require.Equal(t, http.StatusOK, got.Code)
	var product domain.Product
	require.NoError(t, json.Unmarshal(body.Data, &product))
	assert.Equal(t, "Váy hoa", product.Name)

	missing, body := env.get(t, "/api/v1/products/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

// --- Admin ---

func TestAdmin_RequiresAdminToken(t *testing.T) {
	env := newTestEnv(t)

	rr, body := env.do(t, multipartRequest(t, http.MethodPost, "/api/v1/admin/products", validFields()))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)

	req := withToken(multipartRequest(t, http.MethodPost, "/api/v1/admin/products", validFields()), token(t, "customer"))
	rr, body = env.do(t, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "FORBIDDEN", body.Error.Code)

	rr, _ = env.do(t, withToken(httptest.NewRequest(http.MethodPost, "/api/v1/admin/reindex", nil), token(t, "customer")))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAdmin_ProductLifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := token(t, AdminRole)

	req := withToken(multipartRequest(t, http.MethodPost, "/api/v1/admin/products", validFields(),
		formFile{name: "front.png", contentType: "image/png", data: []byte("png-bytes")},
	), admin)
	rr, body := env.do(t, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	var created domain.Product
	require.NoError(t, json.Unmarshal(body.Data, &created))
	assert.Equal(t, "ao-so-mi-do", created.Slug)
	assert.Equal(t, int64(350000), created.Price)
	assert.Equal(t, 8, created.Stock)
	assert.Equal(t, []string{"Đỏ", "Trắng"}, created.Colors)
	require.Len(t, created.Images, 1)
	assert.Equal(t, 1, env.storage.Len())

	rr, body = env.get(t, "/api/v1/search?query=s%C6%A1%20mi")
	require.Equal(t, http.StatusOK, rr.Code)
	var res domain.SearchResult
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.Equal(t, int64(1), res.Total)

	fields := validFields()
	fields["price"] = "299000"
	fields["status"] = "inactive"
	rr, body = env.do(t, withToken(multipartRequest(t, http.MethodPut, "/api/v1/admin/products/"+created.ID, fields), admin))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated domain.Product
	require.NoError(t, json.Unmarshal(body.Data, &updated))
	assert.Equal(t, int64(299000), updated.Price)
	assert.Equal(t, domain.ProductStatusInactive, updated.Status)
	assert.Equal(t, created.Images, updated.Images)

	rr, _ = env.do(t, withToken(httptest.NewRequest(http.MethodDelete, "/api/v1/admin/products/"+created.ID, nil), admin))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, env.storage.Len())

	rr, _ = env.get(t, "/api/v1/products/"+created.ID)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, body = env.get(t, "/api/v1/search?query=s%C6%A1%20mi")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.Zero(t, res.Total)
}

func TestAdmin_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	admin := token(t, AdminRole)

	fields := validFields()
	fields["name"] = "Ao"
	fields["price"] = "-1"
	delete(fields, "category")

	rr, body := env.do(t, withToken(multipartRequest(t, http.MethodPost, "/api/v1/admin/products", fields), admin))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Contains(t, body.Error.Fields, "name")
	assert.Contains(t, body.Error.Fields, "price")
	assert.Contains(t, body.Error.Fields, "category")

	list, _, err := env.repo.List(context.Background(), domain.ProductFilter{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAdmin_CreateRejectsBadImage(t *testing.T) {
	env := newTestEnv(t)
	req := withToken(multipartRequest(t, http.MethodPost, "/api/v1/admin/products", validFields(),
		formFile{name: "doc.pdf", contentType: "application/pdf", data: []byte("%PDF")},
	), token(t, AdminRole))

	rr, body := env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_INPUT", body.Error.Code)
	assert.Zero(t, env.storage.Len())
}

func TestAdmin_CreateRequiresMultipart(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/products", bytes.NewBufferString(`{"name":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	rr, body := env.do(t, withToken(req, token(t, AdminRole)))
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	assert.Equal(t, "UNSUPPORTED_MEDIA_TYPE", body.Error.Code)
}

func TestAdmin_UpdateMissingProduct(t *testing.T) {
	env := newTestEnv(t)
	req := withToken(multipartRequest(t, http.MethodPut, "/api/v1/admin/products/"+uuid.NewString(), validFields()), token(t, AdminRole))

	rr, body := env.do(t, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestAdmin_Reindex(t *testing.T) {
	env := newTestEnv(t)
	admin := token(t, AdminRole)
	ctx := context.Background()
	for _, p := range []domain.Product{newProduct("A", "ao", 1), newProduct("B", "ao", 2), newProduct("C", "quan", 3)} {
		require.NoError(t, env.repo.Create(ctx, &p))
	}

	rr, body := env.do(t, withToken(httptest.NewRequest(http.MethodPost, "/api/v1/admin/reindex", nil), admin))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res struct {
		TotalIndexed int `json:"totalIndexed"`
		TotalBatches int `json:"totalBatches"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.Equal(t, 3, res.TotalIndexed)
	assert.Equal(t, 2, res.TotalBatches)
	assert.Equal(t, 3, env.engine.Len())

	rr, _ = env.do(t, withToken(httptest.NewRequest(http.MethodPost, "/api/v1/admin/reindex?batch_size=0", nil), admin))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	env.engine.SetAvailable(false)
	rr, body = env.do(t, withToken(httptest.NewRequest(http.MethodPost, "/api/v1/admin/reindex", nil), admin))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
}

func TestAdmin_DeleteIndexedProduct(t *testing.T) {
	env := newTestEnv(t)
	admin := token(t, AdminRole)
	p := newProduct("Áo", "ao", 1)
	env.seed(t, p)

	rr, _ := env.do(t, withToken(httptest.NewRequest(http.MethodDelete, "/api/v1/admin/index/products/"+p.ID, nil), admin))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, env.engine.Len())

	rr, body := env.do(t, withToken(httptest.NewRequest(http.MethodDelete, "/api/v1/admin/index/products/"+p.ID, nil), admin))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)

	_, err := env.repo.GetByID(context.Background(), p.ID)
	assert.NoError(t, err, "store is untouched")
}
