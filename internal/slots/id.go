package slots

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

var slotNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("medslots/availability-slot"))

// SlotID derives a stable identifier for a slot, so regenerating the same slot
// yields the same id.
func SlotID(clinicID, specialistID, serviceOptionID string, start time.Time) string {
	key := strings.Join([]string{
		clinicID,
		specialistID,
		serviceOptionID,
		start.UTC().Format(time.RFC3339),
	}, "|")
	return uuid.NewSHA1(slotNamespace, []byte(key)).String()
}
