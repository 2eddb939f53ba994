package exec

import "src.kati.dev/pkg/strutil"

// runnable is one fully expanded shell command with its recipe prefixes
// already parsed off.
type runnable struct {
	cmd string
	// @ — do not echo the command.
	noEcho bool
	// - — a failing exit status is logged and ignored.
	ignoreError bool
	// + — run even under dry-run (the recursion marker).
	alwaysRun bool
}

// splitCommand splits an expanded recipe on unescaped newlines. A backslash
// before the newline keeps the pair in the same shell invocation.
func splitCommand(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' && (i == 0 || s[i-1] != '\\') {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// parsePrefixes strips the @, - and + recipe prefixes, in any order and with
// interleaved whitespace, the way a rule line like "\t@-+cmd" is read.
func parsePrefixes(line string) runnable {
	r := runnable{}
	i := 0
loop:
	for i < len(line) {
		switch line[i] {
		case ' ', '\t':
		case '@':
			r.noEcho = true
		case '-':
			r.ignoreError = true
		case '+':
			r.alwaysRun = true
		default:
			break loop
		}
		i++
	}
	r.cmd = strutil.TrimRightSpace(line[i:])
	return r
}
