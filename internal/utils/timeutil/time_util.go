package timeutil

import (
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/xerrors"
)

func TimeToISO8601(date time.Time) string {
	if date.IsZero() {
		return ""
	}

	return date.UTC().Format(time.RFC3339Nano)
}

func ParseISO8601(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// ParseHexTimestamp converts a hex-encoded unix timestamp, e.g. the timestamp
// field of an eth_getBlockByNumber result, into a time.Time.
func ParseHexTimestamp(value string) (time.Time, error) {
	seconds, err := hexutil.DecodeUint64(value)
	if err != nil {
		return time.Time{}, xerrors.Errorf("failed to decode hex timestamp %v: %w", value, err)
	}

	return time.Unix(int64(seconds), 0), nil
}

// SinceHexTimestamp returns the elapsed time since a hex-encoded unix timestamp.
func SinceHexTimestamp(value string) (time.Duration, error) {
	t, err := ParseHexTimestamp(value)
	if err != nil {
		return 0, err
	}

	return time.Since(t), nil
}
