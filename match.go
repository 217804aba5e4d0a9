package dbus

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// MatchRule is a parsed bus match rule (§4.G). Zero value matches
// everything; each non-empty field narrows the match.
type MatchRule struct {
	Type          string // "signal", "method_call", "method_return", "error", or ""
	Sender        string
	Interface     string
	Member        string
	Path          string
	PathNamespace string
	Destination   string
	Eavesdrop     bool
	Arg           map[int]string
	ArgPath       map[int]string
	Arg0Namespace string
}

// CompileMatchRule parses the comma-separated key=value match rule text
// used by org.freedesktop.DBus.AddMatch.
func CompileMatchRule(text string) (MatchRule, error) {
	var r MatchRule
	for _, clause := range splitClauses(text) {
		if clause == "" {
			continue
		}
		eq := strings.IndexByte(clause, '=')
		if eq < 0 {
			return MatchRule{}, fmt.Errorf("dbus: malformed match rule clause %q", clause)
		}
		key := strings.TrimSpace(clause[:eq])
		val := unquote(strings.TrimSpace(clause[eq+1:]))
		switch {
		case key == "type":
			r.Type = val
		case key == "sender":
			r.Sender = val
		case key == "interface":
			r.Interface = val
		case key == "member":
			r.Member = val
		case key == "path":
			r.Path = val
		case key == "path_namespace":
			r.PathNamespace = val
		case key == "destination":
			r.Destination = val
		case key == "eavesdrop":
			r.Eavesdrop = val == "true"
		case key == "arg0namespace":
			r.Arg0Namespace = val
		case strings.HasPrefix(key, "arg") && strings.HasSuffix(key, "path"):
			n, err := strconv.Atoi(key[3 : len(key)-4])
			if err != nil || n < 0 || n > 63 {
				return MatchRule{}, fmt.Errorf("dbus: bad argNpath key %q", key)
			}
			if r.ArgPath == nil {
				r.ArgPath = make(map[int]string)
			}
			r.ArgPath[n] = val
		case strings.HasPrefix(key, "arg"):
			n, err := strconv.Atoi(key[3:])
			if err != nil || n < 0 || n > 63 {
				return MatchRule{}, fmt.Errorf("dbus: bad argN key %q", key)
			}
			if r.Arg == nil {
				r.Arg = make(map[int]string)
			}
			r.Arg[n] = val
		default:
			return MatchRule{}, fmt.Errorf("dbus: unknown match rule key %q", key)
		}
	}
	return r, nil
}

// splitClauses splits on top-level commas, respecting single-quoted values
// (D-Bus match rules quote values containing commas with single quotes).
func splitClauses(s string) []string {
	var out []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			cur.WriteByte(c)
		case c == ',' && !inQuote:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	out = append(out, cur.String())
	return out
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}

// Display renders r back to AddMatch's textual form.
func (r MatchRule) Display() string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, fmt.Sprintf("%s='%s'", k, v))
		}
	}
	add("type", r.Type)
	add("sender", r.Sender)
	add("interface", r.Interface)
	add("member", r.Member)
	add("path", r.Path)
	add("path_namespace", r.PathNamespace)
	add("destination", r.Destination)
	add("arg0namespace", r.Arg0Namespace)
	if r.Eavesdrop {
		parts = append(parts, "eavesdrop='true'")
	}
	for n, v := range r.Arg {
		parts = append(parts, fmt.Sprintf("arg%d='%s'", n, v))
	}
	for n, v := range r.ArgPath {
		parts = append(parts, fmt.Sprintf("arg%dpath='%s'", n, v))
	}
	return strings.Join(parts, ",")
}

// Evaluate reports whether m satisfies every clause of r (§4.G, §8
// invariant 4).
func (r MatchRule) Evaluate(m *Message) bool {
	if r.Type != "" && r.Type != messageTypeName(m.Type) {
		return false
	}
	if r.Sender != "" && r.Sender != m.Sender() {
		return false
	}
	if r.Interface != "" && r.Interface != m.Interface() {
		return false
	}
	if r.Member != "" && r.Member != m.Member() {
		return false
	}
	if r.Path != "" && r.Path != string(m.Path()) {
		return false
	}
	if r.PathNamespace != "" && !pathInNamespace(string(m.Path()), r.PathNamespace) {
		return false
	}
	if r.Destination != "" && r.Destination != m.Destination() {
		return false
	}
	body, _ := DecodeMulti(bodyContext(m.Order), m.BodySignature(), m.Body, m.Fds)
	for n, want := range r.Arg {
		if !argMatches(body, n, want, false) {
			return false
		}
	}
	for n, want := range r.ArgPath {
		if !argMatches(body, n, want, true) {
			return false
		}
	}
	if r.Arg0Namespace != "" {
		if len(body) == 0 {
			return false
		}
		s, ok := body[0].(string)
		if !ok || !pathInNamespace(s, r.Arg0Namespace) {
			return false
		}
	}
	return true
}

func argMatches(body []interface{}, n int, want string, isPath bool) bool {
	if n >= len(body) {
		return false
	}
	s, ok := body[n].(string)
	if !ok {
		if op, ok := body[n].(ObjectPath); ok {
			s = string(op)
		} else {
			return false
		}
	}
	if isPath {
		return pathInNamespace(s, want) || pathInNamespace(want, s)
	}
	return s == want
}

func pathInNamespace(path, namespace string) bool {
	if path == namespace {
		return true
	}
	return strings.HasPrefix(path, namespace+"/") || strings.HasPrefix(path, namespace+".")
}

func messageTypeName(t MessageType) string {
	switch t {
	case TypeMethodCall:
		return "method_call"
	case TypeMethodReply:
		return "method_return"
	case TypeError:
		return "error"
	case TypeSignal:
		return "signal"
	}
	return ""
}

// matchRegistry tracks refcounted bus-side match rules: callers that
// compile the same rule text share one AddMatch subscription, released on
// the last drop (§3 "Signal subscription", §4.G "reference counts").
type matchRegistry struct {
	mu     sync.Mutex
	counts map[string]int
	group  singleflight.Group
}

func newMatchRegistry() *matchRegistry {
	return &matchRegistry{counts: make(map[string]int)}
}

// acquire increments the refcount for text. Only the first acquirer runs
// addMatch (through singleflight); later acquirers return nil at once,
// without waiting for that AddMatch to finish. If addMatch fails, the
// count is taken back and its error is returned.
func (r *matchRegistry) acquire(text string, addMatch func() error) error {
	r.mu.Lock()
	n := r.counts[text]
	r.counts[text] = n + 1
	r.mu.Unlock()
	if n > 0 {
		return nil
	}
	_, err, _ := r.group.Do(text, func() (interface{}, error) {
		return nil, addMatch()
	})
	if err != nil {
		r.mu.Lock()
		r.counts[text]--
		r.mu.Unlock()
	}
	return err
}

// release decrements the refcount for text and reports whether the
// caller must perform the RemoveMatch round-trip (last releaser).
func (r *matchRegistry) release(text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.counts[text]
	if n <= 1 {
		delete(r.counts, text)
		return n == 1
	}
	r.counts[text] = n - 1
	return false
}
