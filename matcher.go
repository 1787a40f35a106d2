package permcore

import "strings"

// WildcardMatch reports whether target is covered by a wildcard-bearing
// permission in userPermissions, returning the pattern that matched.
//
// Universal overrides (system.admin, bare "*") are deliberately not handled
// here: the caller tests them first, which keeps override semantics explicit
// and skips the iteration entirely for admin users.
func WildcardMatch(userPermissions []string, target string) (string, bool) {
	if target == "" {
		return "", false
	}
	targetSegs := strings.Split(target, ".")

	for _, perm := range userPermissions {
		if perm == WildcardAll || !strings.Contains(perm, "*") {
			continue
		}

		// Fast path: a two-segment "category.*" covers every target whose
		// first segment is the category, regardless of target depth.
		if category, found := strings.CutSuffix(perm, ".*"); found &&
			!strings.Contains(category, ".") && !strings.Contains(category, "*") {
			if targetSegs[0] == category {
				return perm, true
			}
			continue
		}

		if segmentsMatch(strings.Split(perm, "."), targetSegs) {
			return perm, true
		}
	}
	return "", false
}

// segmentsMatch compares pattern segments against target segments. A "*"
// segment matches exactly one target segment, except a trailing "*" which
// matches one or more remaining segments. Matching is case-sensitive; names
// are expected lower-case and no normalization is performed.
func segmentsMatch(pattern, target []string) bool {
	if len(pattern) == 0 || len(target) == 0 {
		return false
	}

	last := len(pattern) - 1
	if pattern[last] == "*" {
		if len(target) < len(pattern) {
			return false
		}
		for i := 0; i < last; i++ {
			if pattern[i] != "*" && pattern[i] != target[i] {
				return false
			}
		}
		return true
	}

	if len(pattern) != len(target) {
		return false
	}
	for i := range pattern {
		if pattern[i] != "*" && pattern[i] != target[i] {
			return false
		}
	}
	return true
}

// HasUniversalGrant reports whether the set carries one of the universal
// overrides that grant every permission.
func HasUniversalGrant(userPermissions []string) bool {
	for _, perm := range userPermissions {
		if perm == AdminPermission || perm == WildcardAll {
			return true
		}
	}
	return false
}
