package pos

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document numbers combine a UTC date with a random suffix so they sort
// roughly by day and never collide in practice.
//
//	TXN-20260115-3F9A2C41
//	PO-20260115-B07D11E5

// NewTransactionNumber returns a fresh sale transaction number.
func NewTransactionNumber() string { return documentNumber("TXN") }

// NewPurchaseNumber returns a fresh purchase order number.
func NewPurchaseNumber() string { return documentNumber("PO") }

func documentNumber(prefix string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().UTC().Format("20060102"), suffix)
}
