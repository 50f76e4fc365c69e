package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// GuestSessionCookie carries the visitor session id of guests.
	GuestSessionCookie = "perf_session_id"
	GuestSessionMaxAge = 30 * 24 * time.Hour

	guestPrefix = "guest_"
)

// NewGuestSessionID returns "guest_" followed by 32 random hex characters.
func NewGuestSessionID() string {
	return guestPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsGuestSessionID reports whether id has the shape produced by NewGuestSessionID.
func IsGuestSessionID(id string) bool {
	rest, ok := strings.CutPrefix(id, guestPrefix)
	if !ok || len(rest) != 32 {
		return false
	}
	for _, r := range rest {
		if !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}

// UserSessionID is the session id of a logged-in customer.
func UserSessionID(userID int64) string {
	return fmt.Sprintf("user_%d", userID)
}
