package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

// RoundExclusionsKey holds the set of translator ids already notified for a
// job in the current broadcast round. Automatic re-dispatch skips them; a
// manual admin resend ignores the set.
func RoundExclusionsKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s:round_exclusions", jobID)
}
