// Package parser turns unittest/nose style runner output into a RunResult.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/s22625/supcut/internal/model"
)

const (
	// minDividerWidth is the shortest run of '=' or '-' treated as a divider.
	minDividerWidth = 10
	// fullDividerWidth is the width of the runner's closing '-' divider.
	fullDividerWidth = 70
)

const (
	failPrefix  = "FAIL: "
	errorPrefix = "ERROR: "
)

// Static regexes for runner output.
var (
	ranRegex     = regexp.MustCompile(`^Ran (\d+) tests? in (\S+)$`)
	verdictRegex = regexp.MustCompile(`^(OK|FAILED)( \(.*\))?$`)
	frameRegex   = regexp.MustCompile(`^\s*File "([^"]+)", line (\d+), in (\S+)`)
)

type state int

const (
	stateOutside state = iota
	stateHeader
	stateTraceback
	stateCapture
	stateEnd
)

func (s state) String() string {
	switch s {
	case stateOutside:
		return "outside"
	case stateHeader:
		return "header"
	case stateTraceback:
		return "traceback"
	case stateCapture:
		return "capture"
	case stateEnd:
		return "end"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Options tunes parsing.
type Options struct {
	// IncludeErrors also records "ERROR: " blocks as failing tests.
	IncludeErrors bool
}

// Parse parses runner output with default options.
func Parse(lines []string) *model.RunResult {
	return ParseWith(lines, Options{})
}

// ParseWith parses runner output. It never fails: malformed or truncated
// output yields whatever was recognised, with Total left nil when the summary
// line is missing.
func ParseWith(lines []string, opts Options) *model.RunResult {
	res := model.NewRunResult()
	res.RawOutput = make([]string, len(lines))
	for i, line := range lines {
		res.RawOutput[i] = strings.TrimRight(line, "\r\n")
	}

	sc := &scanner{res: res, opts: opts}
	for _, line := range res.RawOutput {
		sc.step(line)
	}
	sc.finish()

	res.Total, res.Duration = summary(res.RawOutput)
	return res
}

type scanner struct {
	res     *model.RunResult
	opts    Options
	state   state
	current string
}

func (sc *scanner) step(line string) {
	eq := isDivider(line, '=')
	dash := isDivider(line, '-')
	full := dash && dividerWidth(line) >= fullDividerWidth

	switch sc.state {
	case stateOutside:
		if eq {
			sc.enterHeader()
		}

	case stateHeader:
		switch {
		case eq:
			sc.enterHeader()
		case dash:
			if sc.current == "" {
				sc.state = stateOutside
				return
			}
			sc.state = stateTraceback
		case sc.current == "":
			id, ok := sc.headerID(line)
			if !ok {
				sc.state = stateOutside
				return
			}
			sc.open(id)
		default:
			// Test description line between the header and its traceback.
		}

	case stateTraceback:
		switch {
		case eq:
			sc.enterHeader()
		case full:
			sc.state = stateEnd
		case dash:
			sc.state = stateCapture
		default:
			sc.appendLine(line)
			sc.noteFrame(line)
		}

	case stateCapture:
		switch {
		case eq:
			sc.enterHeader()
		case full:
			sc.state = stateEnd
		default:
			sc.appendLine(line)
		}

	case stateEnd:
		// Nothing after the closing divider belongs to a failure block.
	}
}

func (sc *scanner) enterHeader() {
	sc.closeCurrent()
	sc.state = stateHeader
}

func (sc *scanner) headerID(line string) (string, bool) {
	if strings.HasPrefix(line, failPrefix) {
		id := strings.TrimSpace(line[len(failPrefix):])
		return id, id != ""
	}
	if sc.opts.IncludeErrors && strings.HasPrefix(line, errorPrefix) {
		id := strings.TrimSpace(line[len(errorPrefix):])
		return id, id != ""
	}
	return "", false
}

func (sc *scanner) open(id string) {
	sc.current = id
	sc.res.FailingTests[id] = struct{}{}
	if _, ok := sc.res.Traces[id]; !ok {
		sc.res.Traces[id] = []string{}
	}
}

func (sc *scanner) appendLine(line string) {
	if sc.current == "" {
		return
	}
	sc.res.Traces[sc.current] = append(sc.res.Traces[sc.current], line)
}

// noteFrame records a "path:name" frame for the current test. A frame named
// after the test method wins over later frames; otherwise the deepest frame
// is kept. The trace key itself is never changed.
func (sc *scanner) noteFrame(line string) {
	if sc.current == "" {
		return
	}
	m := frameRegex.FindStringSubmatch(line)
	if m == nil {
		return
	}
	frame := m[1] + ":" + m[3]
	method := testMethod(sc.current)
	if prev, ok := sc.res.Frames[sc.current]; ok && strings.HasSuffix(prev, ":"+method) {
		return
	}
	sc.res.Frames[sc.current] = frame
}

func (sc *scanner) closeCurrent() {
	if sc.current == "" {
		return
	}
	sc.res.Traces[sc.current] = trimTrailingBlank(sc.res.Traces[sc.current])
	sc.current = ""
}

func (sc *scanner) finish() {
	sc.closeCurrent()
}

// summary searches backwards for the "Ran N tests in D" line, skipping blank
// lines, '-' dividers and the OK/FAILED verdict.
func summary(lines []string) (*int, string) {
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || isDivider(line, '-') || verdictRegex.MatchString(line) {
			continue
		}
		m := ranRegex.FindStringSubmatch(line)
		if m == nil {
			return nil, ""
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, ""
		}
		return &n, m[2]
	}
	return nil, ""
}

func isDivider(line string, ch byte) bool {
	s := strings.TrimRight(line, " \t")
	if len(s) < minDividerWidth {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] != ch {
			return false
		}
	}
	return true
}

func dividerWidth(line string) int {
	return len(strings.TrimRight(line, " \t"))
}

// testMethod returns "test_foo" for "test_foo (pkg.module.Case)".
func testMethod(id string) string {
	if i := strings.IndexByte(id, ' '); i > 0 {
		return id[:i]
	}
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		return id[i+1:]
	}
	return id
}

func trimTrailingBlank(lines []string) []string {
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[:end]
}
