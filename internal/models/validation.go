package models

import (
	"fmt"
	"sort"
	"strings"
)

// FieldErrors maps attribute names to validation messages. It is returned by
// the persistence layer when a record is rejected.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, fe[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for attr unless a message is already present.
func (fe FieldErrors) Add(attr, msg string) {
	if _, ok := fe[attr]; !ok {
		fe[attr] = msg
	}
}

// Err returns nil when no errors were recorded.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// SubmitResult is returned when a coupon record was written.
type SubmitResult struct {
	CouponID int64 `json:"coupon_id"`
	Created  bool  `json:"created"`
}
