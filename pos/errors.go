/*
errors.go - Centralized error types for the POS engines

PURPOSE:

	All error kinds in one place. Engines return these; the API layer maps
	them to HTTP status codes without string matching.

ERROR CATEGORIES:
 1. NotFound    - A referenced entity does not exist
 2. InvalidState - The entity's current state forbids the operation
 3. Validation  - A business rule was violated (stock, payment, input)

USAGE:

	Callers classify with the helpers:

	  if pos.IsNotFound(err) { ... 404 ... }

	or extract detail with errors.As:

	  var stockErr *pos.InsufficientStockError
	  if errors.As(err, &stockErr) { ... stockErr.Available ... }

SEE ALSO:
  - inventory, sales, purchasing: produce these errors
  - api/handlers.go: maps them to HTTP responses
*/
package pos

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrSupplierNotFound = errors.New("supplier not found")
	ErrActorNotFound    = errors.New("actor not found")
	ErrSaleNotFound     = errors.New("sale not found")
	ErrPurchaseNotFound = errors.New("purchase not found")

	// ErrInvalidState is returned when an operation is attempted against
	// an entity whose status forbids it (e.g. cancelling a cancelled sale).
	ErrInvalidState = errors.New("invalid state transition")

	ErrProductInactive     = errors.New("product is inactive")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrInvalidInput        = errors.New("invalid input")

	// ErrReferenced is returned when deleting a category or supplier that
	// products still reference.
	ErrReferenced = errors.New("record is referenced by existing products")
)

// =============================================================================
// STRUCTURED ERRORS - Carry the offending entity and amounts
// =============================================================================

// ProductNotFoundError identifies which product reference failed.
type ProductNotFoundError struct {
	ID ProductID
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ID)
}

func (e *ProductNotFoundError) Unwrap() error { return ErrProductNotFound }

// ActorNotFoundError identifies a missing user reference and the role it
// was expected to fill (cashier, canceller, creator).
type ActorNotFoundError struct {
	Role string
	ID   UserID
}

func (e *ActorNotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Role, e.ID)
}

func (e *ActorNotFoundError) Unwrap() error { return ErrActorNotFound }

// ProductInactiveError names the inactive product that blocked a sale.
type ProductInactiveError struct {
	ID   ProductID
	Name string
}

func (e *ProductInactiveError) Error() string {
	return fmt.Sprintf("product %d (%s) is inactive and cannot be sold", e.ID, e.Name)
}

func (e *ProductInactiveError) Unwrap() error { return ErrProductInactive }

// InsufficientStockError reports how short a sale line came up.
type InsufficientStockError struct {
	ProductID ProductID
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InsufficientPaymentError reports the payment shortfall.
type InsufficientPaymentError struct {
	TotalAmount decimal.Decimal
	AmountPaid  decimal.Decimal
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: total %s, paid %s",
		e.TotalAmount.StringFixed(2), e.AmountPaid.StringFixed(2))
}

func (e *InsufficientPaymentError) Unwrap() error { return ErrInsufficientPayment }

// InvalidStateError reports a forbidden sale status transition.
type InvalidStateError struct {
	SaleID SaleID
	Status SaleStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("sale %d is %s: only completed sales can be cancelled", e.SaleID, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrSupplierNotFound) ||
		errors.Is(err, ErrActorNotFound) ||
		errors.Is(err, ErrSaleNotFound) ||
		errors.Is(err, ErrPurchaseNotFound)
}

// IsInvalidState returns true for forbidden status transitions.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsValidation returns true if the error is a business-rule rejection the
// caller can correct (as opposed to a storage failure).
func IsValidation(err error) bool {
	return errors.Is(err, ErrProductInactive) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInsufficientPayment) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrReferenced)
}
