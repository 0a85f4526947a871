package generator

import (
	"path"
	"strings"
)

// Match reports whether the slash separated name matches pattern. A "**"
// segment matches any number of segments, including none; other
// segments follow path.Match.
func Match(pattern, name string) (bool, error) {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pat, segs []string) (bool, error) {
	for len(pat) > 0 {
		if pat[0] == "**" {
			pat = pat[1:]
			if len(pat) == 0 {
				return true, nil
			}
			for i := 0; i <= len(segs); i++ {
				ok, err := matchSegments(pat, segs[i:])
				if ok || err != nil {
					return ok, err
				}
			}
			return false, nil
		}
		if len(segs) == 0 {
			return false, nil
		}
		ok, err := path.Match(pat[0], segs[0])
		if err != nil || !ok {
			return false, err
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0, nil
}

// Selected reports whether name matches one of includes and none of
// excludes. No includes means everything is included.
func Selected(name string, includes, excludes []string) (bool, error) {
	in := len(includes) == 0
	for _, p := range includes {
		ok, err := Match(p, name)
		if err != nil {
			return false, err
		}
		if ok {
			in = true
			break
		}
	}
	if !in {
		return false, nil
	}
	for _, p := range excludes {
		ok, err := Match(p, name)
		if err != nil {
			return false, err
		}
		if ok {
			return false, nil
		}
	}
	return true, nil
}
