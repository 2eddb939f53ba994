package parse

import (
	"fmt"
	"strings"

	"src.kati.dev/pkg/diag"
	"src.kati.dev/pkg/strutil"
)

// parser maintains the mutable state of parsing one makefile.
type parser struct {
	name string
	src  string
	cfg  Config

	l          int // read offset into src
	lineno     int // first physical line of the current logical line
	nextLineno int

	stmts    []Stmt
	outStack []*[]Stmt
	ifStack  []*ifState

	inDefine        bool
	defineName      Value
	defineOp        AssignOp
	defineStart     int
	defineBody      []string
	defineNest      int
	defineDirective AssignDirective

	curDirective AssignDirective
	afterRule    bool
}

type ifState struct {
	stmt   *IfStmt
	inElse bool
	// A chained "else ifeq" shares its endif with the enclosing conditional.
	chained bool
}

// Parse parses the source into a statement list. Syntax problems become
// ErrorStmt entries; parsing always continues to the end of the input.
func Parse(src Source, cfg Config) []Stmt {
	ps := &parser{name: src.Name, src: src.Code, cfg: cfg, nextLineno: 1}
	if cfg.StartLine > 0 {
		ps.nextLineno = cfg.StartLine
	}
	for ps.l < len(ps.src) {
		line := ps.nextLine()
		if ps.inDefine {
			ps.parseInsideDefine(line)
			continue
		}
		ps.parseLine(line)
	}
	if ps.inDefine {
		ps.lineno = ps.defineStart
		ps.errorf("*** missing `endef', unterminated `define'.")
	} else if len(ps.ifStack) > 0 {
		ps.errorf("*** missing `endif'.")
	}
	return ps.stmts
}

func (ps *parser) loc() diag.Location {
	return locOf(ps.name, ps.lineno)
}

func (ps *parser) sink() *[]Stmt {
	if len(ps.outStack) > 0 {
		return ps.outStack[len(ps.outStack)-1]
	}
	return &ps.stmts
}

func (ps *parser) add(st Stmt) {
	out := ps.sink()
	*out = append(*out, st)
}

func (ps *parser) errorf(format string, args ...interface{}) {
	ps.add(&ErrorStmt{Location: ps.loc(), Msg: fmt.Sprintf(format, args...)})
}

// nextLine returns the next logical line, with backslash continuations left
// in place. It advances the line counter by the number of physical lines the
// logical line spans.
func (ps *parser) nextLine() string {
	ps.lineno = ps.nextLineno
	start := ps.l
	i := start
	lines := 1
	for i < len(ps.src) {
		if ps.src[i] != '\n' {
			i++
			continue
		}
		j := i
		if j > start && ps.src[j-1] == '\r' {
			j--
		}
		backslashes := 0
		for j-backslashes-1 >= start && ps.src[j-backslashes-1] == '\\' {
			backslashes++
		}
		if backslashes%2 == 1 {
			lines++
			i++
			continue
		}
		break
	}
	line := ps.src[start:i]
	if i < len(ps.src) {
		i++ // consume the newline
	}
	ps.l = i
	ps.nextLineno += lines
	return strings.TrimSuffix(line, "\r")
}

// collapseContinuations rewrites every backslash-newline, along with the
// whitespace around it, into a single space. Recipe lines and define bodies
// never go through this.
func collapseContinuations(line string) string {
	if !strings.Contains(line, "\n") {
		return line
	}
	var sb strings.Builder
	i := 0
	for i < len(line) {
		if line[i] == '\\' {
			j := i + 1
			if j < len(line) && line[j] == '\r' {
				j++
			}
			if j < len(line) && line[j] == '\n' {
				trimmed := strutil.TrimRightSpace(sb.String())
				sb.Reset()
				sb.WriteString(trimmed)
				sb.WriteByte(' ')
				i = j + 1
				for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
					i++
				}
				continue
			}
		}
		sb.WriteByte(line[i])
		i++
	}
	return sb.String()
}

func (ps *parser) parseLine(line string) {
	if strings.HasPrefix(line, "\t") && ps.afterRule {
		cmd := line[1:]
		expr, _ := ps.parseExpr(cmd, "", optCommand)
		ps.add(&CommandStmt{Location: ps.loc(), Expr: expr, Orig: cmd})
		return
	}
	line = collapseContinuations(line)
	if i := strutil.IndexOutsideParen(line, "#"); i >= 0 {
		line = line[:i]
	}
	if strutil.TrimSpace(line) == "" {
		return
	}
	line = strutil.TrimLeftSpace(line)
	if ps.handleDirective(line) {
		return
	}
	ps.parseRuleOrAssign(line)
}

// splitDirective returns the leading directive word and the rest of the line.
// An empty token means the line does not start with a directive-shaped word.
func splitDirective(line string) (string, string) {
	i := 0
	for i < len(line) && (isDirectiveByte(line[i])) {
		i++
	}
	if i == 0 {
		return "", line
	}
	if i < len(line) && line[i] != ' ' && line[i] != '\t' {
		return "", line
	}
	return line[:i], strutil.TrimLeftSpace(line[i:])
}

func isDirectiveByte(b byte) bool {
	return b == '-' || 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z'
}

func (ps *parser) handleDirective(line string) bool {
	tok, rest := splitDirective(line)
	switch tok {
	case "include", "sinclude", "-include":
		expr, _ := ps.parseExpr(strutil.TrimSpace(rest), "", optNormal)
		ps.add(&IncludeStmt{Location: ps.loc(), Expr: expr, ShouldExist: tok == "include"})
		ps.afterRule = false
	case "define":
		ps.startDefine(rest)
	case "ifdef":
		ps.parseIfdef(CondIfdef, rest, false)
	case "ifndef":
		ps.parseIfdef(CondIfndef, rest, false)
	case "ifeq":
		ps.parseIfeq(CondIfeq, rest, false)
	case "ifneq":
		ps.parseIfeq(CondIfneq, rest, false)
	case "else":
		ps.handleElse(rest)
	case "endif":
		ps.handleEndif(rest)
	case "override":
		ps.handleOverride(rest)
	case "export":
		ps.handleExport(rest, true)
	case "unexport":
		ps.handleExport(rest, false)
	default:
		return false
	}
	return true
}

func (ps *parser) startDefine(rest string) {
	name := strutil.TrimSpace(rest)
	op := OpSet
	// GNU-style "define NAME :=" and friends.
	if strings.HasSuffix(name, "=") {
		body := strutil.TrimRightSpace(name[:len(name)-1])
		switch {
		case strings.HasSuffix(body, ":"):
			op, body = OpSimple, body[:len(body)-1]
		case strings.HasSuffix(body, "+"):
			op, body = OpAppend, body[:len(body)-1]
		case strings.HasSuffix(body, "?"):
			op, body = OpCondSet, body[:len(body)-1]
		}
		name = strutil.TrimRightSpace(body)
	}
	if name == "" {
		ps.errorf("*** empty variable name.")
		return
	}
	ps.defineName, _ = ps.parseExpr(name, "", optNormal)
	ps.defineOp = op
	ps.defineDirective = ps.curDirective
	ps.defineStart = ps.lineno
	ps.defineBody = nil
	ps.defineNest = 0
	ps.inDefine = true
	ps.afterRule = false
}

func (ps *parser) parseInsideDefine(line string) {
	tok, rest := splitDirective(strutil.TrimLeftSpace(line))
	switch tok {
	case "define":
		ps.defineNest++
	case "endef":
		if ps.defineNest > 0 {
			ps.defineNest--
			break
		}
		if i := strutil.IndexOutsideParen(rest, "#"); i >= 0 {
			rest = rest[:i]
		}
		if strutil.TrimSpace(rest) != "" {
			ps.errorf("extraneous text after `endef' directive")
		}
		ps.finishDefine()
		return
	}
	ps.defineBody = append(ps.defineBody, line)
}

func (ps *parser) finishDefine() {
	body := strings.Join(ps.defineBody, "\n")
	rhs, _ := ps.parseExpr(body, "", optDefine)
	ps.add(&AssignStmt{
		Location:  locOf(ps.name, ps.defineStart),
		Lhs:       ps.defineName,
		Rhs:       rhs,
		OrigRhs:   body,
		Op:        ps.defineOp,
		Directive: ps.defineDirective,
	})
	ps.inDefine = false
}

func (ps *parser) enterIf(st *IfStmt, chained bool) {
	ps.add(st)
	ps.ifStack = append(ps.ifStack, &ifState{stmt: st, chained: chained})
	ps.outStack = append(ps.outStack, &st.TrueStmts)
}

func (ps *parser) parseIfdef(op CondOp, rest string, chained bool) {
	name := strutil.TrimSpace(rest)
	if name == "" {
		ps.errorf("*** invalid syntax in conditional.")
		return
	}
	lhs, _ := ps.parseExpr(name, "", optNormal)
	ps.enterIf(&IfStmt{Location: ps.loc(), Op: op, Lhs: lhs}, chained)
}

func (ps *parser) parseIfeq(op CondOp, rest string, chained bool) {
	rest = strutil.TrimSpace(rest)
	lhs, rhs, ok := ps.parseCondArgs(rest)
	if !ok {
		ps.errorf("*** invalid syntax in conditional.")
		return
	}
	ps.enterIf(&IfStmt{Location: ps.loc(), Op: op, Lhs: lhs, Rhs: rhs}, chained)
}

// parseCondArgs accepts the (lhs,rhs), "lhs" "rhs" and 'lhs' 'rhs' forms.
func (ps *parser) parseCondArgs(rest string) (Value, Value, bool) {
	if strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")") {
		content := rest[1 : len(rest)-1]
		i := strutil.IndexOutsideParen(content, ",")
		if i < 0 {
			return nil, nil, false
		}
		lhs, _ := ps.parseExpr(strutil.TrimSpace(content[:i]), "", optFunc)
		rhs, _ := ps.parseExpr(strutil.TrimSpace(content[i+1:]), "", optFunc)
		return lhs, rhs, true
	}
	l, rest, ok := parseQuoted(rest)
	if !ok {
		return nil, nil, false
	}
	r, rest, ok := parseQuoted(strutil.TrimLeftSpace(rest))
	if !ok || strutil.TrimSpace(rest) != "" {
		return nil, nil, false
	}
	lhs, _ := ps.parseExpr(l, "", optFunc)
	rhs, _ := ps.parseExpr(r, "", optFunc)
	return lhs, rhs, true
}

func parseQuoted(s string) (content, rest string, ok bool) {
	if s == "" || s[0] != '"' && s[0] != '\'' {
		return "", s, false
	}
	quote := s[0]
	i := strings.IndexByte(s[1:], quote)
	if i < 0 {
		return "", s, false
	}
	return s[1 : 1+i], s[i+2:], true
}

func (ps *parser) handleElse(rest string) {
	if len(ps.ifStack) == 0 {
		ps.errorf("*** extraneous `else'.")
		return
	}
	st := ps.ifStack[len(ps.ifStack)-1]
	if st.inElse {
		ps.errorf("*** only one `else' per conditional.")
		return
	}
	st.inElse = true
	ps.outStack[len(ps.outStack)-1] = &st.stmt.FalseStmts
	rest = strutil.TrimLeftSpace(rest)
	if rest == "" {
		return
	}
	tok, chainedRest := splitDirective(rest)
	switch tok {
	case "ifdef":
		ps.parseIfdef(CondIfdef, chainedRest, true)
	case "ifndef":
		ps.parseIfdef(CondIfndef, chainedRest, true)
	case "ifeq":
		ps.parseIfeq(CondIfeq, chainedRest, true)
	case "ifneq":
		ps.parseIfeq(CondIfneq, chainedRest, true)
	default:
		ps.errorf("extraneous text after `else' directive")
	}
}

func (ps *parser) handleEndif(rest string) {
	if strutil.TrimSpace(rest) != "" {
		ps.errorf("extraneous text after `endif' directive")
	}
	if len(ps.ifStack) == 0 {
		ps.errorf("*** extraneous `endif'.")
		return
	}
	for {
		st := ps.ifStack[len(ps.ifStack)-1]
		ps.ifStack = ps.ifStack[:len(ps.ifStack)-1]
		ps.outStack = ps.outStack[:len(ps.outStack)-1]
		if !st.chained {
			break
		}
	}
}

func (ps *parser) handleOverride(rest string) {
	saved := ps.curDirective
	ps.curDirective |= DirOverride
	defer func() { ps.curDirective = saved }()

	tok, drest := splitDirective(rest)
	switch tok {
	case "define":
		ps.startDefine(drest)
		return
	case "export":
		ps.handleExport(drest, true)
		return
	case "unexport":
		ps.handleExport(drest, false)
		return
	}
	sep := strutil.IndexOutsideParen(rest, ":=;")
	switch {
	case sep >= 0 && rest[sep] == '=':
		ps.parseAssign(rest, sep)
	case sep >= 0 && rest[sep] == ':' && sep+1 < len(rest) && rest[sep+1] == '=':
		ps.parseAssign(rest, sep+1)
	default:
		ps.errorf("*** invalid `override' directive.")
	}
}

func (ps *parser) handleExport(rest string, isExport bool) {
	saved := ps.curDirective
	if isExport {
		ps.curDirective |= DirExport
	}
	defer func() { ps.curDirective = saved }()

	if isExport {
		tok, drest := splitDirective(rest)
		switch tok {
		case "define":
			ps.startDefine(drest)
			return
		case "override":
			ps.handleOverride(drest)
			return
		}
		if sep := strutil.IndexOutsideParen(rest, "="); sep > 0 {
			ps.parseAssign(rest, sep)
			return
		}
	}
	expr, _ := ps.parseExpr(strutil.TrimSpace(rest), "", optNormal)
	ps.add(&ExportStmt{Location: ps.loc(), Expr: expr, IsExport: isExport})
	ps.afterRule = false
}

func (ps *parser) parseRuleOrAssign(line string) {
	sep := strutil.IndexOutsideParen(line, ":=;")
	switch {
	case sep < 0, line[sep] == ';':
		ps.parseRule(line, -1)
	case line[sep] == '=':
		ps.parseAssign(line, sep)
	case sep+1 < len(line) && line[sep+1] == '=':
		ps.parseAssign(line, sep+1)
	default:
		ps.parseRule(line, sep)
	}
}

func (ps *parser) parseRule(line string, sep int) {
	if ps.curDirective != DirNone {
		ps.errorf("*** invalid `override' directive.")
		return
	}
	rule := &RuleStmt{Location: ps.loc()}
	searchFrom := 0
	if sep >= 0 {
		searchFrom = sep + 1
	}
	found := strutil.IndexOutsideParen(line[searchFrom:], "=;")
	if found >= 0 {
		found += searchFrom
		rule.Lhs, _ = ps.parseExpr(strutil.TrimSpace(line[:found]), "", optNormal)
		rhs := strutil.TrimLeftSpace(line[found+1:])
		if line[found] == ';' {
			rule.Sep = SepSemicolon
			rule.Rhs, _ = ps.parseExpr(rhs, "", optCommand)
		} else {
			rule.Sep = SepEq
			if strings.HasPrefix(rhs, "$=") {
				rule.Sep = SepFinalEq
				rhs = strutil.TrimLeftSpace(rhs[2:])
			}
			rule.Rhs, _ = ps.parseExpr(rhs, "", optNormal)
			rule.OrigRhs = rhs
		}
	} else {
		rule.Lhs, _ = ps.parseExpr(strutil.TrimSpace(line), "", optNormal)
		rule.Sep = SepNull
	}
	ps.add(rule)
	ps.afterRule = true
}

func (ps *parser) parseAssign(line string, sepEq int) {
	if sepEq == 0 {
		ps.errorf("*** empty variable name ***")
		return
	}
	op := OpSet
	lhsEnd := sepEq
	switch line[sepEq-1] {
	case ':':
		lhsEnd--
		op = OpSimple
	case '+':
		lhsEnd--
		op = OpAppend
	case '?':
		lhsEnd--
		op = OpCondSet
	}
	lhs := strutil.TrimSpace(line[:lhsEnd])
	if lhs == "" {
		ps.errorf("*** empty variable name ***")
		return
	}
	rhs := strutil.TrimLeftSpace(line[sepEq+1:])
	isFinal := false
	if strings.HasPrefix(rhs, "$=") {
		isFinal = true
		rhs = strutil.TrimLeftSpace(rhs[2:])
	}
	lhsV, _ := ps.parseExpr(lhs, "", optNormal)
	rhsV, _ := ps.parseExpr(rhs, "", optNormal)
	ps.add(&AssignStmt{
		Location:  ps.loc(),
		Lhs:       lhsV,
		Rhs:       rhsV,
		OrigRhs:   rhs,
		Op:        op,
		Directive: ps.curDirective,
		IsFinal:   isFinal,
	})
	ps.afterRule = false
}
