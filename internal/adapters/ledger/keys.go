package ledger

import (
	"encoding/binary"
	"errors"

	"github.com/okian/shaker/internal/domain/model"
)

// Key layout:
//
//	e/<user><seq>     event JSON, ordered by ingestion
//	l/<user><drink>   latest entry for the pair
//	p/<user id>       onboarding preferences
//	meta/last_ts      last assigned timestamp (unix nanos)
//	seq/events        badger sequence backing event seq numbers
//
// <user> is a 2-byte big-endian length followed by the user id, so one
// user's prefix never matches another user's keys.
var (
	prefixEvent  = []byte("e/")
	prefixLatest = []byte("l/")
	prefixPrefs  = []byte("p/")
	keyLastTS    = []byte("meta/last_ts")
	keySequence  = []byte("seq/events")
)

const maxUserIDLen = model.MaxUserIDBytes

var errMalformedKey = errors.New("malformed ledger key")

func userPart(userID string) []byte {
	b := make([]byte, 2, 2+len(userID))
	binary.BigEndian.PutUint16(b, uint16(len(userID))) //nolint:gosec // bounded by maxUserIDLen
	return append(b, userID...)
}

func join(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func eventKey(userID string, seq uint64) []byte {
	var s [8]byte
	binary.BigEndian.PutUint64(s[:], seq)
	return join(prefixEvent, userPart(userID), s[:])
}

func eventPrefix(userID string) []byte {
	return join(prefixEvent, userPart(userID))
}

func latestKey(userID, drinkID string) []byte {
	return join(prefixLatest, userPart(userID), []byte(drinkID))
}

func prefsKey(userID string) []byte {
	return join(prefixPrefs, []byte(userID))
}

// splitLatestKey recovers user and drink ids from a latest-entry key.
func splitLatestKey(key []byte) (userID, drinkID string, err error) {
	rest := key[len(prefixLatest):]
	if len(rest) < 2 {
		return "", "", errMalformedKey
	}
	n := int(binary.BigEndian.Uint16(rest))
	if len(rest) < 2+n {
		return "", "", errMalformedKey
	}
	return string(rest[2 : 2+n]), string(rest[2+n:]), nil
}
