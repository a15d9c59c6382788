package domain

import "errors"

var (
	ErrNotFound                 = errors.New("resource not found")
	ErrInvalidAmount            = errors.New("base amount must not be negative")
	ErrInvalidQuantity          = errors.New("quantity must be positive")
	ErrMissingAddressField      = errors.New("address is missing a required field")
	ErrInvalidCalculableType    = errors.New("unknown calculable entity type")
	ErrInvalidStatusTransition  = errors.New("invalid calculation status transition")
	ErrCalculationSuperseded    = errors.New("calculation has been superseded")
	ErrExemptionRevoked         = errors.New("exemption has been revoked")
	ErrDuplicatePattern         = errors.New("pattern already exists for this authority")
	ErrInvalidAddressRange      = errors.New("address range lower bound exceeds upper bound")
	ErrJurisdictionCycle        = errors.New("jurisdiction hierarchy contains a cycle")
	ErrStateHasParent           = errors.New("state jurisdiction must not have a parent")
	ErrUploadFailed             = errors.New("certificate upload to storage failed")
	ErrUnsupportedCertFileType  = errors.New("unsupported certificate file type")
)
