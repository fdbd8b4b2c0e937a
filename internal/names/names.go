// Package names holds the text helpers shared by the directory, resolver and
// command parser: name normalization, quoted argument parsing, member list
// splitting and numeric suffix expansion ("light 1, 2 and 3").
package names

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// MaxRangeSpan bounds a single "a-b" range so a typo like "1-99999" cannot
// fan out into thousands of webhook calls.
const MaxRangeSpan = 100

var ErrRangeTooWide = errors.New("numeric range too wide")

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	memberSeparator = regexp.MustCompile(`[,\s]+`)
	numericSuffix   = regexp.MustCompile(`(?i)^(.+?)\s+([0-9 ,\-andto]+)$`)
	andWord         = regexp.MustCompile(`(?i)\band\b`)
	toWord          = regexp.MustCompile(`(?i)\bto\b`)
	spacedHyphen    = regexp.MustCompile(`\s*-\s*`)
)

// Normalize lower-cases input and strips every character outside [a-z0-9].
func Normalize(input string) string {
	return nonAlphanumeric.ReplaceAllString(strings.ToLower(input), "")
}

// ParseNameArgument splits admin command text into a name and the rest.
// A leading ' or " quotes the name up to the next matching quote; otherwise
// the name is the first whitespace-delimited token. ok is false for empty
// input.
func ParseNameArgument(text string) (name, rest string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", false
	}
	quote := text[0]
	if quote == '"' || quote == '\'' {
		body := text[1:]
		closing := strings.IndexByte(body, quote)
		if closing < 0 {
			return strings.TrimSpace(body), "", true
		}
		return strings.TrimSpace(body[:closing]), strings.TrimSpace(body[closing+1:]), true
	}
	index := strings.IndexFunc(text, unicode.IsSpace)
	if index < 0 {
		return text, "", true
	}
	return text[:index], strings.TrimSpace(text[index:]), true
}

// SplitMembers splits a member list on commas and whitespace, keeping
// entity ids such as light.lr1 intact.
func SplitMembers(text string) []string {
	cleaned := memberSeparator.ReplaceAllString(strings.TrimSpace(text), " ")
	if cleaned == "" {
		return nil
	}
	return strings.Fields(cleaned)
}

// ExpandNumericSuffix turns "living room light 1, 2 and 4" into one phrase per
// number and "light 2 to 4" into "light 2".."light 4". Phrases without a
// usable numeric suffix come back unchanged as a single element. A range
// covering more than MaxRangeSpan numbers fails with ErrRangeTooWide.
func ExpandNumericSuffix(phrase string) ([]string, error) {
	text := strings.TrimSpace(phrase)
	if !hasNumericTrigger(text) {
		return []string{text}, nil
	}
	match := numericSuffix.FindStringSubmatch(text)
	if match == nil {
		return []string{text}, nil
	}
	base := strings.TrimSpace(match[1])
	expression := andWord.ReplaceAllString(match[2], ",")
	expression = toWord.ReplaceAllString(expression, "-")
	expression = spacedHyphen.ReplaceAllString(expression, "-")

	numbers := map[int]struct{}{}
	for _, token := range memberSeparator.Split(expression, -1) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if start, end, isRange := strings.Cut(token, "-"); isRange {
			from, fromOK := parseDigits(start)
			to, toOK := parseDigits(end)
			if !fromOK || !toOK || from > to {
				continue
			}
			if to-from >= MaxRangeSpan {
				return nil, fmt.Errorf("%w: %d-%d covers %d numbers, the limit is %d", ErrRangeTooWide, from, to, to-from+1, MaxRangeSpan)
			}
			for n := from; n <= to; n++ {
				numbers[n] = struct{}{}
			}
			continue
		}
		if n, ok := parseDigits(token); ok {
			numbers[n] = struct{}{}
		}
	}
	if len(numbers) == 0 {
		return []string{text}, nil
	}

	sorted := make([]int, 0, len(numbers))
	for n := range numbers {
		sorted = append(sorted, n)
	}
	sort.Ints(sorted)
	phrases := make([]string, 0, len(sorted))
	for _, n := range sorted {
		phrases = append(phrases, fmt.Sprintf("%s %d", base, n))
	}
	return phrases, nil
}

func hasNumericTrigger(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, ",") ||
		strings.Contains(lower, " and ") ||
		strings.Contains(lower, "-") ||
		strings.Contains(lower, " to ")
}

func parseDigits(token string) (int, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, false
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return n, true
}
