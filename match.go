package vfskit

import "unicode"

// Match reports whether name matches pattern, ignoring case. '?' matches
// exactly one character and '*' matches any run of characters, including
// an empty one. The whole name must be consumed. An empty pattern matches
// only an empty name.
func Match(pattern, name string) bool {
	return matchRunes(upper(pattern), upper(name), 0, false)
}

func upper(s string) []rune {
	r := []rune(s)
	for i, c := range r {
		r[i] = unicode.ToUpper(c)
	}
	return r
}

func at(s []rune) rune {
	if len(s) == 0 {
		return 0
	}
	return s[0]
}

func isWild(c rune) bool {
	return c == '?' || c == '*'
}

// matchRunes first skips skip name characters, then matches pat against
// the rest. With inf set the match is retried at every later name position.
// Recursion depth is bounded by the number of wildcard runs in pat.
func matchRunes(pat, nam []rune, skip int, inf bool) bool {
	for ; skip > 0; skip-- {
		if len(nam) == 0 {
			return false
		}
		nam = nam[1:]
	}
	if len(pat) == 0 && inf {
		return true
	}

	for {
		pp, np := pat, nam
		var nc rune
		for {
			if isWild(at(pp)) {
				nm, nx := 0, false
				for isWild(at(pp)) {
					if pp[0] == '?' {
						nm++
					} else {
						nx = true
					}
					pp = pp[1:]
				}
				if matchRunes(pp, np, nm, nx) {
					return true
				}
				nc = at(np)
				break
			}
			pc := at(pp)
			nc = at(np)
			if pc != nc {
				break
			}
			if pc == 0 {
				return true
			}
			pp, np = pp[1:], np[1:]
		}
		if len(nam) > 0 {
			nam = nam[1:]
		}
		if !inf || nc == 0 {
			return false
		}
	}
}
