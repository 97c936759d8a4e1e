package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a trade identifier for the current time.
//
// IDs generated within the same millisecond still sort in generation
// order, so the journal never sees two equal IDs.
func New() string {
	return At(time.Now())
}

// At returns an identifier whose timestamp component is t. Simulated clocks
// in tests use it to get stable ordering.
func At(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t.UTC()), mono)
	if err != nil {
		// Only reachable when the entropy source is exhausted or t moves
		// backwards past the previous ID within the same millisecond.
		panic(err)
	}
	return id.String()
}

// Time extracts the timestamp encoded in an identifier.
func Time(s string) (time.Time, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(id.Time()).UTC(), nil
}
