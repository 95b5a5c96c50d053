package refnum

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prefixes for the reference numbers handed to users and support staff.
const (
	PurchaseRequest = "PR"
	Transaction     = "TXN"
	Plan            = "PLAN"
	Payment         = "PAY"
	Settlement      = "STL"
)

// New builds a unique human-quotable reference like TXN-2025011493012-4F2A1C.
func New(prefix string) string {
	timestamp := time.Now().UTC().Format("20060102150405")
	unique := strings.ToUpper(uuid.NewString()[:6])
	return fmt.Sprintf("%s-%s-%s", prefix, timestamp, unique)
}
