package http

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/internal/storage"
	"github.com/utafrali/catalog/pkg/httputil"
	"github.com/utafrali/catalog/pkg/pagination"
	"github.com/utafrali/catalog/pkg/validator"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to temporary files.
const multipartMemory = 32 << 20

// ProductHandler handles HTTP requests for product endpoints.
type ProductHandler struct {
	service     *service.ProductService
	maxFileSize int64
	logger      *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.ProductService, maxFileSize int64, logger *slog.Logger) *ProductHandler {
	if maxFileSize <= 0 {
		maxFileSize = storage.DefaultMaxFileSize
	}
	return &ProductHandler{
		service:     svc,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// --- Request DTOs ---

// ProductForm is the multipart form submitted by the admin UI on create and
// update. Numbers arrive as text and are validated before conversion.
type ProductForm struct {
	Name        string `form:"name" validate:"required,min=3,max=100"`
	Price       string `form:"price" validate:"required,number,max=15"`
	Description string `form:"description" validate:"required,min=10,max=1000"`
	Category    string `form:"category" validate:"required,max=100"`
	Colors      string `form:"colors" validate:"required,max=500"`
	Stock       string `form:"stock" validate:"omitempty,number,max=9"`
	Type        string `form:"type" validate:"omitempty,oneof=product-selling product-rental"`
	Status      string `form:"status" validate:"omitempty,oneof=active inactive"`
}

func bindProductForm(r *http.Request) ProductForm {
	v := func(key string) string { return strings.TrimSpace(r.FormValue(key)) }
	return ProductForm{
		Name:        v("name"),
		Price:       v("price"),
		Description: v("description"),
		Category:    v("category"),
		Colors:      v("colors"),
		Stock:       v("stock"),
		Type:        v("type"),
		Status:      v("status"),
	}
}

// toInput converts a validated form. The validator has already guaranteed
// the numeric fields are short digit strings.
func (f ProductForm) toInput() service.ProductInput {
	price, _ := strconv.ParseInt(f.Price, 10, 64)
	stock, _ := strconv.Atoi(f.Stock)
	return service.ProductInput{
		Name:        f.Name,
		Price:       price,
		Description: f.Description,
		Category:    f.Category,
		Colors:      f.Colors,
		Stock:       stock,
		Type:        f.Type,
		Status:      f.Status,
	}
}

// --- Handlers ---

// ListProducts handles GET /api/v1/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)

	products, total, err := h.service.List(r.Context(), service.ListProductsInput{
		Category: r.URL.Query().Get("category"),
		Page:     params.Page,
		PerPage:  params.PerPage,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(products, total, params))
}

// GetProduct handles GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.service.Get(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// CreateProduct handles POST /api/v1/admin/products (multipart/form-data).
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	form, files, cleanup, ok := h.parseProductRequest(w, r)
	if !ok {
		return
	}
	defer cleanup()

	product, err := h.service.Create(r.Context(), form.toInput(), files)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: product})
}

// UpdateProduct handles PUT /api/v1/admin/products/{id} (multipart/form-data).
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	form, files, cleanup, ok := h.parseProductRequest(w, r)
	if !ok {
		return
	}
	defer cleanup()

	product, err := h.service.Update(r.Context(), id.String(), form.toInput(), files)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// DeleteProduct handles DELETE /api/v1/admin/products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id.String(), "status": "deleted"}})
}

// parseProductRequest reads and validates the multipart form and opens the
// attached images. On failure the response has been written and ok is false.
// The caller must run cleanup once the files are consumed.
func (h *ProductHandler) parseProductRequest(w http.ResponseWriter, r *http.Request) (form ProductForm, files []service.FileUpload, cleanup func(), ok bool) {
	maxBody := int64(storage.MaxFilesPerRequest)*h.maxFileSize + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "PAYLOAD_TOO_LARGE", Message: "request body is too large"},
			})
			return form, nil, nil, false
		}
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "failed to parse multipart form: " + err.Error()},
		})
		return form, nil, nil, false
	}

	form = bindProductForm(r)
	if err := validator.Validate(form); err != nil {
		_ = r.MultipartForm.RemoveAll()
		httputil.WriteError(w, r, err, h.logger)
		return form, nil, nil, false
	}

	headers := r.MultipartForm.File["images"]
	if len(headers) > storage.MaxFilesPerRequest {
		_ = r.MultipartForm.RemoveAll()
		httputil.WriteInvalidParameter(w, "at most "+strconv.Itoa(storage.MaxFilesPerRequest)+" images may be uploaded at once")
		return form, nil, nil, false
	}

	opened := make([]multipart.File, 0, len(headers))
	cleanup = func() {
		for _, f := range opened {
			_ = f.Close()
		}
		_ = r.MultipartForm.RemoveAll()
	}

	files = make([]service.FileUpload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			cleanup()
			httputil.WriteError(w, r, err, h.logger)
			return form, nil, nil, false
		}
		opened = append(opened, f)
		files = append(files, service.FileUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Data:        f,
		})
	}

	return form, files, cleanup, true
}
