package permcore

// resolveViaHierarchy walks target's parent links upward, testing each
// ancestor against the user's permission set by exact membership and by
// wildcard. The first ancestor that hits is returned as the match.
//
// The walk is bounded at len(hierarchy)+1 hops so a malformed cyclic
// hierarchy resolves as no-match instead of looping; cyclic reports when the
// bound was hit so the caller can log it for operator attention.
func resolveViaHierarchy(userPermissions []string, target string, hierarchy map[string]*HierarchyNode) (matched string, ok bool, cyclic bool) {
	node, found := hierarchy[target]
	if !found || node.Parent == "" {
		return "", false, false
	}

	maxHops := len(hierarchy) + 1
	current := node.Parent
	for hops := 0; current != ""; hops++ {
		if hops >= maxHops {
			return "", false, true
		}
		if containsString(userPermissions, current) {
			return current, true, false
		}
		if _, matches := WildcardMatch(userPermissions, current); matches {
			return current, true, false
		}
		ancestor, exists := hierarchy[current]
		if !exists {
			return "", false, false
		}
		current = ancestor.Parent
	}
	return "", false, false
}

func containsString(set []string, want string) bool {
	for _, s := range set {
		if s == want {
			return true
		}
	}
	return false
}
