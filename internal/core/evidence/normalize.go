// Package evidence extracts canonical fields from raw failure text.
// This is part of the Functional Core - no I/O, only pure functions.
package evidence

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// UnknownErrorType is the error type of evidence with neither message nor stack trace.
const UnknownErrorType = "unknown-error"

// MaxFileReferences is the number of distinct stack frames kept for grouping.
const MaxFileReferences = 3

// fallbackTypeLength bounds an error type taken verbatim from the first line.
const fallbackTypeLength = 50

// Normalized is the canonical view of one failure's error text.
type Normalized struct {
	ErrorType      string
	Message        string
	StackTrace     string
	FileReferences []string
	Unknown        bool
}

// errorTypePattern maps a recognizable first-line shape to an error type.
// When label is empty the first capture group is the error type.
type errorTypePattern struct {
	name  string
	re    *regexp.Regexp
	label string
}

// errorTypePatterns are evaluated in order; the first match wins.
var errorTypePatterns = []errorTypePattern{
	{name: "assertion", re: regexp.MustCompile(`\bAssertionError\s*:`), label: "AssertionError"},
	{name: "timeout", re: regexp.MustCompile(`\bTimeoutError\s*:`), label: "TimeoutError"},
	{name: "element-not-found", re: regexp.MustCompile(`\bElementNotFound\s*:`), label: "ElementNotFound"},
	{name: "error", re: regexp.MustCompile(`\b([A-Za-z_$][\w$.]*Error)\s*:`)},
	{name: "exception", re: regexp.MustCompile(`\b([A-Za-z_$][\w$.]*Exception)\s*:`)},
}

// sourceExtensions are the file types recognized as stack frame references.
var sourceExtensions = []string{
	"js", "jsx", "mjs", "cjs", "ts", "tsx", "mts", "cts", "vue", "svelte",
	"html", "htm", "py", "rb", "java", "kt", "go", "cs", "php", "feature",
	"scala", "swift",
}

// fileRefPattern captures a candidate path ending in a source extension. Line
// and column suffixes (":42", ":42:7", "(42,7)", ", line 42") fall outside the
// capture. Candidates are then checked by isTokenStart and isTokenEnd.
var fileRefPattern = regexp.MustCompile(
	`[A-Za-z0-9_\-./\\@~+]+\.(?:` + strings.Join(sourceExtensions, "|") + `)\b`,
)

// uriSchemes are removed from frame lines before references are captured.
var uriSchemes = strings.NewReplacer("webpack:///", "", "webpack://", "", "file://", "")

// uriHost matches the scheme and authority of any remaining URL, including its
// port, so only the path is left behind.
var uriHost = regexp.MustCompile(`[A-Za-z][A-Za-z0-9+.\-]*://[^/\s]*/`)

// driveLetter matches a Windows drive prefix at the start of a token.
var driveLetter = regexp.MustCompile(`(^|[\s("'\[])[A-Za-z]:([\\/])`)

// Normalize extracts the error type and top file references from raw text.
// It never fails: empty input yields the unknown-error sentinel.
func Normalize(message, stackTrace string) Normalized {
	message = strings.TrimSpace(message)
	stackTrace = strings.TrimSpace(stackTrace)

	if message == "" && stackTrace == "" {
		return Normalized{ErrorType: UnknownErrorType, Unknown: true}
	}

	source := message
	if source == "" {
		source = stackTrace
	}

	return Normalized{
		ErrorType:      ExtractErrorType(firstLine(source)),
		Message:        message,
		StackTrace:     stackTrace,
		FileReferences: ExtractFileReferences(stackTrace),
	}
}

// ExtractErrorType derives the error type from the first line of an error message.
func ExtractErrorType(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return UnknownErrorType
	}

	for _, p := range errorTypePatterns {
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if p.label != "" {
			return p.label
		}
		return m[1]
	}

	if idx := strings.Index(line, ":"); idx > 0 {
		if prefix := strings.TrimSpace(line[:idx]); prefix != "" {
			return truncateRunes(prefix, fallbackTypeLength)
		}
	}

	return truncateRunes(line, fallbackTypeLength)
}

// ExtractFileReferences returns up to MaxFileReferences distinct source files
// referenced by the stack trace, in order of appearance.
func ExtractFileReferences(stackTrace string) []string {
	var refs []string
	seen := make(map[string]bool)

	for _, line := range strings.Split(stackTrace, "\n") {
		line = uriSchemes.Replace(line)
		line = uriHost.ReplaceAllString(line, "")
		line = driveLetter.ReplaceAllString(line, "$1$2")
		for _, loc := range fileRefPattern.FindAllStringIndex(line, -1) {
			if !isTokenStart(line, loc[0]) || !isTokenEnd(line, loc[1]) {
				continue
			}
			ref := cleanReference(line[loc[0]:loc[1]])
			if ref == "" || seen[ref] {
				continue
			}
			seen[ref] = true
			refs = append(refs, ref)
			if len(refs) == MaxFileReferences {
				return refs
			}
		}
	}

	return refs
}

// isTokenStart reports whether a reference may begin at offset i. Anything
// glued to the left, such as a package path or a port, disqualifies it.
func isTokenStart(line string, i int) bool {
	if i == 0 {
		return true
	}
	return strings.IndexByte(" \t(['\"<", line[i-1]) >= 0
}

// isTokenEnd reports whether a reference may end at offset i. A following dot
// or letter means the extension was only part of a longer identifier.
func isTokenEnd(line string, i int) bool {
	if i == len(line) {
		return true
	}
	return strings.IndexByte(" \t\r:)],'\">?#", line[i]) >= 0
}

// cleanReference normalizes path separators.
func cleanReference(ref string) string {
	ref = strings.ReplaceAll(ref, `\`, "/")
	return strings.TrimLeft(ref, "@")
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
