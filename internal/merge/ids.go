package merge

import (
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDSource hands out item ids that are never reused.
type IDSource interface {
	NewID() string
}

// ULIDSource generates monotonic ULIDs from its own entropy.
type ULIDSource struct {
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// NewULIDSource seeds a ULID generator from the current time.
func NewULIDSource() *ULIDSource {
	seed := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &ULIDSource{
		entropy: ulid.Monotonic(seed, 0),
		now:     time.Now,
	}
}

func (s *ULIDSource) NewID() string {
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}
