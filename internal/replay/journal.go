// Package replay implements the deterministic record/replay harness used
// in place of a live stdin/stdout peer: a journal file encodes a sequence
// of transactions, each a request to feed in followed by the responses it
// expects to see come back, and Harness drives a Dispatcher against it the
// same way a real client would, without process boundaries.
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const matchPrefix = "# MATCH: "

// Transaction is one journal entry: the request/notification frames to
// feed to the server, followed by the response frames expected back.
type Transaction struct {
	Requests []string
	Expected []string
}

// ReadJournal parses a journal file into an ordered list of transactions.
// Transactions are separated by a line containing only "---". Consecutive
// non-blank, non-comment lines are joined into one request; a blank line,
// a "#" comment line, a "# MATCH: " line or a "---" line ends it. Lines
// starting with "#" (other than the "# MATCH: " marker) are otherwise
// ignored. A line starting with "# MATCH: " names an expected response,
// with the marker stripped.
func ReadJournal(r io.Reader) ([]Transaction, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)

	var txs []Transaction
	cur := Transaction{}
	var buf strings.Builder

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		cur.Requests = append(cur.Requests, strings.TrimRight(buf.String(), "\n"))
		buf.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "---":
			flush()
			if len(cur.Requests) > 0 || len(cur.Expected) > 0 {
				txs = append(txs, cur)
			}
			cur = Transaction{}
		case strings.HasPrefix(line, matchPrefix):
			flush()
			cur.Expected = append(cur.Expected, strings.TrimPrefix(line, matchPrefix))
		case line == "" || strings.HasPrefix(line, "#"):
			flush()
		default:
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	if len(cur.Requests) > 0 || len(cur.Expected) > 0 {
		txs = append(txs, cur)
	}
	return txs, nil
}

// ExpandMacros substitutes ${file:<rel>} occurrences appearing as JSON
// string VALUES (never as object keys) with a file:// URI rooted at base.
// A bare ${file} with no relative path expands to base itself.
//
// Unlike a decode-mutate-reencode approach, this walks the original text
// byte by byte and rewrites only the string literals that actually contain
// a macro, leaving every other byte — key order, spacing, number
// formatting — untouched. That matters because spec.md's replay
// comparison is a raw string equality check on the post-expansion text
// against what the dispatcher writes; re-encoding the whole document
// through Go's map-keyed JSON marshaler would alphabetize object keys and
// break that comparison on essentially every multi-key line. This mirrors
// the original's SAX filter, which tracks "is this a key" explicitly
// rather than decoding and rebuilding the document.
func ExpandMacros(jsonText string, base string) (string, error) {
	if !json.Valid([]byte(jsonText)) {
		return "", fmt.Errorf("replay: invalid JSON: %s", jsonText)
	}

	var out strings.Builder
	// containerIsObject/expectKey are parallel stacks, one entry per open
	// {} or [] nesting level; expectKey is only meaningful when the
	// corresponding containerIsObject entry is true.
	var containerIsObject []bool
	var expectKey []bool

	src := jsonText
	i := 0
	for i < len(src) {
		c := src[i]
		switch c {
		case '{':
			out.WriteByte(c)
			containerIsObject = append(containerIsObject, true)
			expectKey = append(expectKey, true)
			i++
		case '[':
			out.WriteByte(c)
			containerIsObject = append(containerIsObject, false)
			expectKey = append(expectKey, false)
			i++
		case '}', ']':
			out.WriteByte(c)
			if len(containerIsObject) > 0 {
				containerIsObject = containerIsObject[:len(containerIsObject)-1]
				expectKey = expectKey[:len(expectKey)-1]
			}
			i++
		case ',':
			out.WriteByte(c)
			if n := len(containerIsObject); n > 0 && containerIsObject[n-1] {
				expectKey[n-1] = true
			}
			i++
		case ':':
			out.WriteByte(c)
			if n := len(containerIsObject); n > 0 && containerIsObject[n-1] {
				expectKey[n-1] = false
			}
			i++
		case '"':
			start := i
			i++
			for i < len(src) {
				if src[i] == '\\' && i+1 < len(src) {
					i += 2
					continue
				}
				if src[i] == '"' {
					i++
					break
				}
				i++
			}
			literal := src[start:i]
			n := len(containerIsObject)
			isKey := n > 0 && containerIsObject[n-1] && expectKey[n-1]
			if isKey {
				out.WriteString(literal)
			} else {
				out.WriteString(expandQuotedString(literal, base))
			}
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String(), nil
}

// expandQuotedString takes one quoted-and-escaped JSON string literal (with
// its surrounding quotes) and expands any ${file...} macro in its decoded
// content. A literal with no macro is returned byte-for-byte unchanged;
// one that does gets re-escaped through json.Marshal, matching the
// encoding the dispatcher itself uses for any string it writes.
func expandQuotedString(literal, base string) string {
	var decoded string
	if err := json.Unmarshal([]byte(literal), &decoded); err != nil {
		return literal
	}
	expanded := expandString(decoded, base)
	if expanded == decoded {
		return literal
	}
	out, err := json.Marshal(expanded)
	if err != nil {
		return literal
	}
	return string(out)
}

func expandString(s, base string) string {
	var out strings.Builder
	i := 0
	for {
		start := strings.Index(s[i:], "${file")
		if start < 0 {
			out.WriteString(s[i:])
			break
		}
		start += i
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			out.WriteString(s[i:])
			break
		}
		end += start

		out.WriteString(s[i:start])
		macro := s[start+2 : end] // strip "${" "}"
		out.WriteString(expandOneMacro(macro, base))
		i = end + 1
	}
	return out.String()
}

func expandOneMacro(macro, base string) string {
	const prefix = "file"
	if macro == prefix {
		return "file://" + base
	}
	if strings.HasPrefix(macro, prefix+":") {
		rel := strings.TrimPrefix(macro, prefix+":")
		return fmt.Sprintf("file://%s/%s", base, rel)
	}
	return "${" + macro + "}"
}
