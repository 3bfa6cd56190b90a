package main

import (
	"strings"

	"github.com/samber/lo"
)

// headerColumns are the substrings a valid upload's header must contain,
// matched case-insensitively. This is a deliberately lenient substring check,
// not exact column identity: a header with a "user name suffix" column passes.
var headerColumns = []string{"user name", "user email", "profile url"}

// parseCSVLine splits one CSV line into fields. A double quote toggles the
// in-quotes state, a doubled quote inside a quoted field yields a literal
// quote, and commas separate fields only outside quotes.
func parseCSVLine(line string) []string {
	var fields []string
	var current strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				current.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case ch == ',' && !inQuotes:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	fields = append(fields, current.String())
	return fields
}

// parseRecords turns raw CSV content into typed records. The first line is
// the header and never produces a record, blank lines are skipped, and a line
// with fewer fields than the header is dropped with a warning rather than
// partially accepted. OriginalIndex is the 1-based source line number, kept
// only as the final ranking tie-break.
func parseRecords(content string) []Record {
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	if len(lines) < 2 {
		return nil
	}

	headerWidth := len(parseCSVLine(lines[0]))
	records := make([]Record, 0, len(lines)-1)

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		fields := parseCSVLine(lines[i])
		if len(fields) < headerWidth {
			logWarn("Dropping row %d: %d fields, header has %d", i, len(fields), headerWidth)
			continue
		}
		records = append(records, Record{
			Name:               strings.TrimSpace(field(fields, 0)),
			Email:              strings.TrimSpace(field(fields, 1)),
			ProfileURL:         strings.TrimSpace(field(fields, 2)),
			ProfileStatus:      strings.TrimSpace(field(fields, 3)),
			AccessCodeRedeemed: strings.TrimSpace(field(fields, 4)) == "Yes",
			AllCompleted:       strings.TrimSpace(field(fields, 5)) == "Yes",
			BadgesCount:        parseLeadingUint(field(fields, 6)),
			BadgeNames:         strings.TrimSpace(field(fields, 7)),
			GamesCount:         parseLeadingUint(field(fields, 8)),
			GameNames:          strings.TrimSpace(field(fields, 9)),
			OriginalIndex:      uint(i),
		})
	}
	return records
}

// field returns fields[i] or "" when the row is too short for optional columns.
func field(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

// parseLeadingUint parses the leading digits of a value and returns 0 on
// absence or parse failure. Never fails.
func parseLeadingUint(s string) uint {
	s = strings.TrimSpace(s)
	var n uint
	var seen bool
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			break
		}
		n = n*10 + uint(s[i]-'0')
		seen = true
	}
	if !seen {
		return 0
	}
	return n
}

// sanitizeForPublic blanks the email column of every data line and
// re-serializes each with all fields quoted and internal quotes doubled.
// The header and blank lines pass through verbatim. This is a reversible
// format transform, not a semantic parse, and it is the only shape of the
// dataset the public leaderboard action is allowed to serve.
func sanitizeForPublic(content string) string {
	lines := strings.Split(content, "\n")
	sanitized := make([]string, len(lines))

	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			sanitized[i] = line
			continue
		}
		fields := parseCSVLine(line)
		if len(fields) > 1 {
			fields[1] = ""
		}
		quoted := lo.Map(fields, func(f string, _ int) string {
			return `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
		})
		sanitized[i] = strings.Join(quoted, ",")
	}
	return strings.Join(sanitized, "\n")
}

// validateStructure is the upload-time gate: at least two non-empty lines and
// a header containing every required column substring, in any order.
func validateStructure(content string) bool {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	nonEmpty := lo.CountBy(lines, func(line string) bool {
		return strings.TrimSpace(line) != ""
	})
	if nonEmpty < 2 {
		return false
	}

	header := strings.ToLower(lines[0])
	return lo.EveryBy(headerColumns, func(col string) bool {
		return strings.Contains(header, col)
	})
}
