package handler_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taxatlas/internal/domain"
	"taxatlas/internal/handler"
	mocks "taxatlas/mocks/servicemocks"
)

func newExemptionHandler() (*handler.ExemptionHandler, *mocks.MockExemptionService) {
	mockSvc := new(mocks.MockExemptionService)
	h := handler.NewExemptionHandler(mockSvc)
	return h, mockSvc
}

func exemptionBody() map[string]interface{} {
	return map[string]interface{}{
		"exemption_type":     "nonprofit",
		"certificate_number": "CERT-2026-0042",
		"certificate_issuer": "Illinois DOR",
		"is_blanket":         true,
		"effective_date":     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestExemptionHandler_Create_JSON(t *testing.T) {
	h, mockSvc := newExemptionHandler()

	tenantID := uuid.New()
	expected := &domain.TaxExemption{
		ID:       uuid.New(),
		TenantID: tenantID,
		Status:   domain.ExemptionActive,
	}
	mockSvc.On("Create", mock.Anything, tenantID, mock.AnythingOfType("service.CreateExemptionInput"), mock.Anything).
		Return(expected, nil)

	body, _ := json.Marshal(exemptionBody())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/exemptions", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	setTenantContext(c, tenantID)

	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp handler.APIResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestExemptionHandler_Create_MissingRequired(t *testing.T) {
	h, _ := newExemptionHandler()

	body, _ := json.Marshal(map[string]string{"exemption_type": "nonprofit"})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/exemptions", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	setTenantContext(c, uuid.New())

	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExemptionHandler_Create_MultipartWithCertificate(t *testing.T) {
	h, mockSvc := newExemptionHandler()

	tenantID := uuid.New()
	expected := &domain.TaxExemption{ID: uuid.New(), TenantID: tenantID}
	mockSvc.On("Create", mock.Anything, tenantID, mock.Anything, mock.Anything).
		Return(expected, nil)

	metadata, _ := json.Marshal(exemptionBody())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("metadata", string(metadata)))
	part, err := mw.CreateFormFile("certificate", "cert.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.7"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/exemptions", &buf)
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())
	setTenantContext(c, tenantID)

	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestExemptionHandler_Create_MultipartMissingMetadata(t *testing.T) {
	h, _ := newExemptionHandler()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/exemptions", &buf)
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())
	setTenantContext(c, uuid.New())

	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExemptionHandler_List_RequiresClientID(t *testing.T) {
	h, _ := newExemptionHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/exemptions", http.NoBody)
	setTenantContext(c, uuid.New())

	h.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExemptionHandler_List_Success(t *testing.T) {
	h, mockSvc := newExemptionHandler()

	tenantID := uuid.New()
	clientID := uuid.New()
	mockSvc.On("ListByClient", mock.Anything, tenantID, clientID, 0, 20).
		Return([]domain.TaxExemption{{ID: uuid.New()}}, 1, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/exemptions?client_id="+clientID.String(), http.NoBody)
	setTenantContext(c, tenantID)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestExemptionHandler_Revoke_AlreadyRevoked(t *testing.T) {
	h, mockSvc := newExemptionHandler()

	tenantID := uuid.New()
	id := uuid.New()
	mockSvc.On("Revoke", mock.Anything, tenantID, id).Return(domain.ErrExemptionRevoked)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/exemptions/"+id.String()+"/revoke", http.NoBody)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	setTenantContext(c, tenantID)

	h.Revoke(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestExemptionHandler_Revoke_BadID(t *testing.T) {
	h, _ := newExemptionHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/exemptions/not-a-uuid/revoke", http.NoBody)
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
	setTenantContext(c, uuid.New())

	h.Revoke(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
