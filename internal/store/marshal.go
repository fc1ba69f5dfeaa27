package store

import (
	"fmt"
	"time"

	"github.com/roach88/fontrecipe/internal/ir"
)

// marshalArgs converts operation arguments to canonical JSON TEXT.
func marshalArgs(args ir.Map) (string, error) {
	if args == nil {
		args = ir.Map{}
	}
	data, err := ir.MarshalCanonical(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// timeText stores timestamps as RFC 3339 in UTC.
func timeText(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
