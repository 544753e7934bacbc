package clickhouse

import "time"

// millisToTime converts a Unix millisecond timestamp to UTC time.
func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
