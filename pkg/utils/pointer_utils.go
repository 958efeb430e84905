package utils

// SafeDeref safely dereferences a string pointer and returns empty string if nil
func SafeDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Float64 returns a pointer to v
func Float64(v float64) *float64 {
	return &v
}

// Float64Value dereferences p, returning def when p is nil
func Float64Value(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
