package glob

import "os"

// Glob calls cb with each filename satisfying the pattern. Filesystem errors
// are silently suppressed, matching the behavior expected of $(wildcard). The
// callback returns false to interrupt globbing, in which case Glob also
// returns false.
func Glob(p string, cb func(string) bool) bool {
	return Parse(p).Glob(cb)
}

// Glob calls cb with each filename satisfying the Pattern.
func (p Pattern) Glob(cb func(string) bool) bool {
	segs := p.Segments
	dir := ""
	if len(segs) > 0 {
		if _, ok := segs[0].(Slash); ok {
			segs = segs[1:]
			dir = "/"
		}
	}
	return glob(segs, dir, cb)
}

// glob finds all filenames matching segs under dir and calls cb on each.
func glob(segs []Segment, dir string, cb func(string) bool) bool {
	// Consume literal path elements by following the path directly. This is
	// required for "." and ".." elements, which never appear in ReadDir
	// output.
	for len(segs) > 1 {
		lit, isLit := segs[0].(Literal)
		if !isLit {
			break
		}
		if _, isSlash := segs[1].(Slash); !isSlash {
			break
		}
		segs = segs[2:]
		dir += lit.Data + "/"
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return true
		}
	}

	if len(segs) == 0 {
		return cb(dir)
	}
	if len(segs) == 1 {
		if lit, ok := segs[0].(Literal); ok {
			path := dir + lit.Data
			if _, err := os.Lstat(path); err == nil {
				return cb(path)
			}
			return true
		}
	}

	entries, err := readDir(dir)
	if err != nil {
		return true
	}

	// Find the first slash; what precedes it matches a subdirectory name and
	// what follows is matched recursively inside.
	for i, seg := range segs {
		if _, ok := seg.(Slash); !ok {
			continue
		}
		first, rest := segs[:i], segs[i+1:]
		for _, entry := range entries {
			name := entry.Name()
			if matchElement(first, name) && entry.IsDir() {
				if !glob(rest, dir+name+"/", cb) {
					return false
				}
			}
		}
		return true
	}

	// No slashes: match the whole pattern against each entry.
	for _, entry := range entries {
		name := entry.Name()
		if matchElement(segs, name) {
			if !cb(dir + name) {
				return false
			}
		}
	}
	return true
}

// readDir is like os.ReadDir except that it treats an argument of "" as ".".
// Entries come back sorted by name, which gives $(wildcard) its stable output
// order.
func readDir(dir string) ([]os.DirEntry, error) {
	if dir == "" {
		dir = "."
	}
	return os.ReadDir(dir)
}

// matchElement matches one path element against segments that contain no
// Slash. Dotfiles are only matched by patterns that spell the dot out.
func matchElement(segs []Segment, name string) bool {
	if len(segs) == 0 {
		return name == ""
	}
	if len(name) > 0 && name[0] == '.' {
		if _, isWild := segs[0].(Wild); isWild {
			return false
		}
	}
	return matchHere(segs, name)
}

func matchHere(segs []Segment, name string) bool {
	for len(segs) > 0 {
		switch seg := segs[0].(type) {
		case Literal:
			if len(name) < len(seg.Data) || name[:len(seg.Data)] != seg.Data {
				return false
			}
			name = name[len(seg.Data):]
			segs = segs[1:]
		case Wild:
			if seg.Type == Star {
				// Try every split point, longest rest first is unnecessary;
				// any successful split will do.
				for i := 0; i <= len(name); i++ {
					if matchHere(segs[1:], name[i:]) {
						return true
					}
				}
				return false
			}
			if len(name) == 0 || !seg.Match(name[0]) {
				return false
			}
			name = name[1:]
			segs = segs[1:]
		default:
			return false
		}
	}
	return name == ""
}
