package util

import "time"

// Now centraliza o relógio em UTC.
func Now() time.Time {
	return time.Now().UTC()
}
