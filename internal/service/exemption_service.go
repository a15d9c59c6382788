package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"taxatlas/internal/domain"
	"taxatlas/internal/port"
)

// allowedCertTypes limits certificate uploads to document formats.
var allowedCertTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

// CreateExemptionInput is the DTO for certificate intake.
type CreateExemptionInput struct {
	ClientID           *uuid.UUID      `json:"client_id"`
	JurisdictionID     *uuid.UUID      `json:"jurisdiction_id"`
	TaxCategory        *string         `json:"tax_category"`
	ExemptionType      string          `json:"exemption_type" binding:"required"`
	CertificateNumber  string          `json:"certificate_number" binding:"required"`
	CertificateIssuer  string          `json:"certificate_issuer"`
	IsBlanket          bool            `json:"is_blanket"`
	ApplicableTaxTypes []string        `json:"applicable_tax_types"`
	ApplicableServices []string        `json:"applicable_services"`
	Conditions         json.RawMessage `json:"conditions"`
	ExemptionPct       decimal.Decimal `json:"exemption_percentage"`
	MaxExemptionAmount *decimal.Decimal `json:"maximum_exemption_amount"`
	EffectiveDate      time.Time       `json:"effective_date" binding:"required"`
	ExpiryDate         *time.Time      `json:"expiry_date"`
}

// CertificateUpload is an optional certificate document accompanying intake.
type CertificateUpload struct {
	Body        io.Reader
	ContentType string
	Size        int64
}

// ExemptionService defines the exemption intake and lifecycle contract.
// Certificate verification itself is an external workflow; this service
// only stores the certificate and reads its status.
type ExemptionService interface {
	Create(ctx context.Context, tenantID uuid.UUID, input CreateExemptionInput, cert *CertificateUpload) (*domain.TaxExemption, error)
	ListByClient(ctx context.Context, tenantID, clientID uuid.UUID, offset, limit int) ([]domain.TaxExemption, int, error)
	Revoke(ctx context.Context, tenantID, id uuid.UUID) error
	ExpireOutdated(ctx context.Context) (int64, error)
}

type exemptionService struct {
	repo    port.ExemptionRepository
	storage port.ObjectStorage
	bucket  string
}

// NewExemptionService creates a new ExemptionService implementation.
func NewExemptionService(repo port.ExemptionRepository, storage port.ObjectStorage, bucket string) ExemptionService {
	return &exemptionService{repo: repo, storage: storage, bucket: bucket}
}

func (s *exemptionService) Create(ctx context.Context, tenantID uuid.UUID, input CreateExemptionInput, cert *CertificateUpload) (*domain.TaxExemption, error) {
	e := &domain.TaxExemption{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		ClientID:           input.ClientID,
		JurisdictionID:     input.JurisdictionID,
		TaxCategory:        input.TaxCategory,
		ExemptionType:      input.ExemptionType,
		CertificateNumber:  input.CertificateNumber,
		CertificateIssuer:  input.CertificateIssuer,
		IsBlanket:          input.IsBlanket,
		ApplicableTaxTypes: input.ApplicableTaxTypes,
		ApplicableServices: input.ApplicableServices,
		Conditions:         input.Conditions,
		ExemptionPct:       input.ExemptionPct,
		MaxExemptionAmount: input.MaxExemptionAmount,
		Status:             domain.ExemptionActive,
		VerificationStatus: domain.VerificationPending,
		EffectiveDate:      input.EffectiveDate,
		ExpiryDate:         input.ExpiryDate,
	}

	if cert != nil {
		if !allowedCertTypes[cert.ContentType] {
			return nil, domain.ErrUnsupportedCertFileType
		}
		key := fmt.Sprintf("certificates/%s/%s", tenantID, e.ID)
		err := s.storage.Put(ctx, port.PutInput{
			Bucket:      s.bucket,
			Key:         key,
			Body:        cert.Body,
			ContentType: cert.ContentType,
			Size:        cert.Size,
		})
		if err != nil {
			log.Printf("service.ExemptionService: certificate upload for %s failed: %v", e.ID, err)
			return nil, domain.ErrUploadFailed
		}
		e.CertificateS3Key = key
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *exemptionService) ListByClient(ctx context.Context, tenantID, clientID uuid.UUID, offset, limit int) ([]domain.TaxExemption, int, error) {
	return s.repo.ListByClient(ctx, tenantID, clientID, offset, limit)
}

func (s *exemptionService) Revoke(ctx context.Context, tenantID, id uuid.UUID) error {
	e, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if e.Status == domain.ExemptionRevoked {
		return domain.ErrExemptionRevoked
	}
	return s.repo.UpdateStatus(ctx, tenantID, id, domain.ExemptionRevoked)
}

// ExpireOutdated sweeps active exemptions past their expiry date.
func (s *exemptionService) ExpireOutdated(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireOutdated(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("service.ExemptionService: expired %d outdated exemptions", n)
	}
	return n, nil
}
