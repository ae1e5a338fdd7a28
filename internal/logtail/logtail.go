package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file yields no lines.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Attr is one key=value pair of a record.
type Attr struct {
	Key   string
	Value string
}

// Record is a parsed slog text line.
type Record struct {
	Time    time.Time
	Level   string
	Message string
	Attrs   []Attr
	// Raw is the original line, kept for lines that are not records.
	Raw string
}

// Parse splits a slog text handler line into its fields. Lines that carry
// no level or message are returned with only Raw set.
func Parse(line string) Record {
	rec := Record{Raw: line}
	pairs, ok := splitPairs(line)
	if !ok {
		return rec
	}
	for _, p := range pairs {
		switch p.Key {
		case "time":
			if ts, err := time.Parse(time.RFC3339Nano, p.Value); err == nil {
				rec.Time = ts
			}
		case "level":
			rec.Level = p.Value
		case "msg":
			rec.Message = p.Value
		default:
			rec.Attrs = append(rec.Attrs, p)
		}
	}
	if rec.Level == "" && rec.Message == "" {
		return Record{Raw: line}
	}
	return rec
}

// Format renders rec on one line for the log pane.
func (r Record) Format() string {
	if r.Level == "" && r.Message == "" {
		return r.Raw
	}
	var b strings.Builder
	if !r.Time.IsZero() {
		b.WriteString(r.Time.In(time.Local).Format("15:04:05"))
		b.WriteByte(' ')
	}
	b.WriteString(fmt.Sprintf("%-5s", r.Level))
	b.WriteByte(' ')
	b.WriteString(r.Message)
	for _, a := range r.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(a.Value)
	}
	return b.String()
}

func splitPairs(line string) ([]Attr, bool) {
	var out []Attr
	rest := strings.TrimSpace(line)
	for rest != "" {
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 || strings.ContainsAny(rest[:eq], " \t\"") {
			return nil, false
		}
		key := rest[:eq]
		rest = rest[eq+1:]

		var value string
		if strings.HasPrefix(rest, `"`) {
			quoted, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return nil, false
			}
			value, _ = strconv.Unquote(quoted)
			rest = rest[len(quoted):]
		} else if sp := strings.IndexByte(rest, ' '); sp >= 0 {
			value = rest[:sp]
			rest = rest[sp:]
		} else {
			value = rest
			rest = ""
		}
		out = append(out, Attr{Key: key, Value: value})
		rest = strings.TrimLeft(rest, " ")
	}
	return out, len(out) > 0
}
