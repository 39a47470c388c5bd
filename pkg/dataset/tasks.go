package dataset

import (
	"fmt"
	"strings"
)

// Task is one unit of rendering work. ID is a dense pool-local index;
// RowIndex is the stable zero-based row identity used for error reporting
// and retry; NameStem is the pre-sanitized filename base without extension.
type Task struct {
	ID       int
	RowIndex int
	Record   Record
	NameStem string
}

// maxStemLen bounds the sanitized name part of an output filename.
const maxStemLen = 50

// fieldSep joins printed values into a dedup key. An ASCII unit separator
// cannot appear in CSV text, so joined keys never collide across fields.
const fieldSep = "\x1f"

// BuildTasks creates the task list for a run from dataset rows and the
// printed field names (in box order, see template.Fields).
//
// Rows whose printed values are identical after trimming are collapsed to a
// single task: rows differing only in columns no box renders would produce
// byte-identical output. The surviving task keeps the first occurrence's
// RowIndex. IDs are assigned densely in row order.
func BuildTasks(records []Record, printedFields []string) []Task {
	tasks := make([]Task, 0, len(records))
	seen := make(map[string]bool, len(records))

	for row, rec := range records {
		values := make([]string, len(printedFields))
		for i, f := range printedFields {
			values[i] = strings.TrimSpace(rec[f])
		}
		key := strings.Join(values, fieldSep)
		if seen[key] {
			continue
		}
		seen[key] = true

		tasks = append(tasks, Task{
			ID:       len(tasks),
			RowIndex: row,
			Record:   rec,
			NameStem: NameStem(row, firstNonEmpty(values)),
		})
	}
	return tasks
}

// NameStem builds the output filename base for a row: a 1-based zero-padded
// row number plus the sanitized display value, e.g. "00042_Jane_Doe".
// The row prefix keeps stems unique even when two distinct rows sanitize to
// the same text.
func NameStem(rowIndex int, display string) string {
	return fmt.Sprintf("%05d_%s", rowIndex+1, Sanitize(display))
}

// Sanitize reduces free text to a safe filename fragment: only ASCII
// letters, digits, dash and underscore survive, spaces become underscores,
// and the result is truncated to 50 characters. Empty input falls back to
// "certificate".
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	s := b.String()
	if len(s) > maxStemLen {
		s = s[:maxStemLen]
	}
	if s == "" {
		return "certificate"
	}
	return s
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
