package id

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// New returns a 32 character hex id: 48 bits of millisecond time followed
// by 80 random bits, so ids sort by creation time in object listings.
func New() string {
	return newAt(time.Now())
}

func newAt(now time.Time) string {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], uint64(now.UnixMilli())<<16)
	if _, err := rand.Read(b[6:]); err != nil {
		binary.BigEndian.PutUint64(b[8:], uint64(now.UnixNano()))
	}
	return hex.EncodeToString(b[:])
}
