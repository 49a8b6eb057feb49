package store

import (
	"time"

	"renamecore/internal/pathkey"
)

func keyOf(s string) pathkey.Key { return pathkey.Key(s) }

func parseTimeOrZero(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
