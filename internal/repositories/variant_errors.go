package repositories

import "fmt"

// VariantErrorCode enumerates repository error causes for variant operations.
type VariantErrorCode string

const (
	// VariantErrorUnknown represents an unspecified failure.
	VariantErrorUnknown VariantErrorCode = "variant_unknown"
	// VariantErrorNotFound indicates the variant document is missing.
	VariantErrorNotFound VariantErrorCode = "variant_not_found"
	// VariantErrorProductNotFound indicates the owning product is missing.
	VariantErrorProductNotFound VariantErrorCode = "variant_product_not_found"
	// VariantErrorSignatureConflict indicates another variant of the product
	// already carries the option signature.
	VariantErrorSignatureConflict VariantErrorCode = "variant_signature_conflict"
	// VariantErrorSKUConflict indicates the SKU is already taken in the owner's namespace.
	VariantErrorSKUConflict VariantErrorCode = "variant_sku_conflict"
	// VariantErrorNotOwned indicates the variant belongs to a different owner.
	VariantErrorNotOwned VariantErrorCode = "variant_not_owned"
)

// VariantError wraps variant-specific failures with machine readable codes.
type VariantError struct {
	Op      string
	Code    VariantErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *VariantError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *VariantError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewVariantError constructs a typed variant error.
func NewVariantError(code VariantErrorCode, message string, err error) *VariantError {
	if message == "" {
		message = string(code)
	}
	return &VariantError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
