// Package calllog captures base-graphics plotting calls and converts them
// into chart specs, so charts drawn without a layered spec go through the
// same engine.
//
// Calls are kept in a text log, one call per line:
//
//	barplot height=3,5,2 names.arg=Thu,Fri,Sat main="Tips by day"
//	lines x=1,2,3 y=2.5,4,1.5
//
// Tokens are split with shell quoting rules. A key=value token is a named
// argument whose value is a comma-separated vector; any other token is a
// positional argument.
package calllog

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/kballard/go-shellquote"

	"github.com/matzehuels/maidr/pkg/errors"
)

// Call is one captured plotting call.
type Call struct {
	Func       string
	Args       map[string][]string
	Positional [][]string
}

// Arg returns the named argument, falling back to the positional argument
// at pos when pos >= 0.
func (c Call) Arg(name string, pos int) []string {
	if v, ok := c.Args[name]; ok {
		return v
	}
	if pos >= 0 && pos < len(c.Positional) {
		return c.Positional[pos]
	}
	return nil
}

// Scalar returns the first value of a named argument, or "".
func (c Call) Scalar(name string) string {
	if v := c.Args[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// String formats the call as a log line.
func (c Call) String() string {
	words := []string{c.Func}
	for _, p := range c.Positional {
		words = append(words, strings.Join(p, ","))
	}
	keys := make([]string, 0, len(c.Args))
	for k := range c.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		words = append(words, k+"="+strings.Join(c.Args[k], ","))
	}
	return shellquote.Join(words...)
}

// ParseLine parses one log line. Blank lines and lines starting with #
// yield a nil call.
func ParseLine(line string) (*Call, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}
	words, err := shellquote.Split(line)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "split call")
	}
	c := &Call{Func: words[0], Args: map[string][]string{}}
	for _, w := range words[1:] {
		if k, v, ok := strings.Cut(w, "="); ok && k != "" {
			c.Args[k] = splitVector(v)
			continue
		}
		c.Positional = append(c.Positional, splitVector(w))
	}
	return c, nil
}

func splitVector(v string) []string {
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Parse reads a call log.
func Parse(r io.Reader) ([]Call, error) {
	var calls []Call
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for n := 1; sc.Scan(); n++ {
		c, err := ParseLine(sc.Text())
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "line %d", n)
		}
		if c != nil {
			calls = append(calls, *c)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read call log: %w", err)
	}
	return calls, nil
}

// Recorder collects the calls of one plotting session. It is safe for
// concurrent use, but each session should use its own Recorder.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends a call.
func (r *Recorder) Record(fn string, args map[string][]string, positional ...[]string) {
	c := Call{Func: fn, Args: make(map[string][]string, len(args)), Positional: positional}
	for k, v := range args {
		c.Args[k] = append([]string(nil), v...)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// Calls returns the recorded calls in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Reset forgets every recorded call.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// WriteTo writes the recorded calls as a log.
func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, c := range r.Calls() {
		m, err := io.WriteString(w, c.String()+"\n")
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
