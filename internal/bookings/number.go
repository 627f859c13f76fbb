package bookings

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

const (
	bookingNumberPrefix = "SY"
	bookingSuffixLen    = 6
	crockfordAlphabet   = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
)

// NumberAllocator issues human-readable booking numbers of the form SY-YYYYMMDD-XXXXXX.
// Uniqueness is enforced by the bookings table; callers retry on collision.
type NumberAllocator struct {
	now    func() time.Time
	random io.Reader
}

func NewNumberAllocator(now func() time.Time) *NumberAllocator {
	if now == nil {
		now = time.Now
	}
	return &NumberAllocator{now: now, random: rand.Reader}
}

func (a *NumberAllocator) Next() (string, error) {
	buf := make([]byte, bookingSuffixLen)
	if _, err := io.ReadFull(a.random, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	suffix := make([]byte, bookingSuffixLen)
	for i, b := range buf {
		suffix[i] = crockfordAlphabet[int(b)&31]
	}
	return fmt.Sprintf("%s-%s-%s", bookingNumberPrefix, a.now().UTC().Format("20060102"), suffix), nil
}
