package utils

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateTraceID returns a random trace identifier for correlating one
// webhook request across log lines and audit rows.
func GenerateTraceID() string {
	return uuid.New().String()
}

const bookingIDPrefix = "HMNP"

var bookingIDAlphabet = []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

// GenerateBookingID creates the externally shareable booking identifier
// stamped into payment metadata by the checkout flow.
// Format: HMNP-<millis base36>-<4 random chars>, e.g. HMNP-LZX4K2M1-A7QD.
func GenerateBookingID() string {
	timestamp := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))

	random := make([]rune, 4)
	for i := range random {
		random[i] = bookingIDAlphabet[rand.Intn(len(bookingIDAlphabet))]
	}

	return fmt.Sprintf("%s-%s-%s", bookingIDPrefix, timestamp, string(random))
}
