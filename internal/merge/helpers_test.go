// internal/merge/helpers_test.go
package merge

import "time"

var timeZero = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
