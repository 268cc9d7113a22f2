package domain

import "strings"

// NormalizeNationalID keeps only the digits of a national ID, so
// "458.632.582-07" and "45863258207" name the same user.
func NormalizeNationalID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
