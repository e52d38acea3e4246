// Package rules applies deterministic substitutions to finished transcripts,
// covering spoken commands ("nieuwe regel" to a newline) and recurring
// recognition mistakes.
package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Engine holds compiled substitution rules in file order.
type Engine struct {
	rules []rule
	limit int
}

type rule interface {
	apply(input string) (string, bool)
}

// Load compiles the rules file at path. An empty path or a missing file
// yields an engine that passes text through untouched.
func Load(path string, limit int) (*Engine, error) {
	if strings.TrimSpace(path) == "" {
		return &Engine{limit: normalizeLimit(limit)}, nil
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Engine{limit: normalizeLimit(limit)}, nil
		}
		return nil, fmt.Errorf("read rules file %q: %w", path, err)
	}
	engine, err := Parse(string(contents), limit)
	if err != nil {
		return nil, fmt.Errorf("rules file %q: %w", path, err)
	}
	return engine, nil
}

// Parse compiles rules from text, one rule per line. Blank lines and lines
// starting with # are skipped. Two forms are supported:
//
//	komma => ,
//	s/\s+([,.!?])/$1/g
//
// Literal rules match case-insensitively. Replacements may use \n and \t
// for newline and tab.
func Parse(contents string, limit int) (*Engine, error) {
	var rules []rule
	for index, raw := range strings.Split(contents, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		compiled, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", index+1, err)
		}
		rules = append(rules, compiled)
	}
	return &Engine{rules: rules, limit: normalizeLimit(limit)}, nil
}

// Len reports how many rules are loaded.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Apply runs every rule over the text repeatedly until no rule changes it
// anymore. The iteration limit keeps mutually feeding rules from cycling
// forever.
func (e *Engine) Apply(text string) (string, error) {
	if len(e.rules) == 0 {
		return text, nil
	}

	result := text
	for i := 0; i < e.limit; i++ {
		changed := false
		for _, r := range e.rules {
			next, ruleChanged := r.apply(result)
			if ruleChanged {
				result = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return result, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 30
	}
	return limit
}

func parseLine(line string) (rule, error) {
	if looksLikeRegexRule(line) {
		return parseRegexRule(line)
	}
	if strings.Contains(line, "=>") {
		return parseLiteralRule(line)
	}
	return nil, errors.New("unsupported rule format")
}

// replacementEscapes expands the escape sequences allowed in rule targets.
var replacementEscapes = strings.NewReplacer(`\n`, "\n", `\t`, "\t")

type literalRule struct {
	re          *regexp.Regexp
	replacement string
}

func parseLiteralRule(line string) (rule, error) {
	parts := strings.SplitN(line, "=>", 2)
	from := strings.TrimSpace(parts[0])
	to := strings.TrimSpace(parts[1])
	if from == "" {
		return nil, errors.New("literal rule source cannot be empty")
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(from))
	if err != nil {
		return nil, fmt.Errorf("invalid literal source: %w", err)
	}
	return literalRule{re: re, replacement: replacementEscapes.Replace(to)}, nil
}

func (r literalRule) apply(input string) (string, bool) {
	output := r.re.ReplaceAllLiteralString(input, r.replacement)
	return output, output != input
}

type regexRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func parseRegexRule(line string) (rule, error) {
	delim := line[1]
	pattern, pos, err := parseDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	replacement, pos, err := parseDelimited(line, pos, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex replacement: %w", err)
	}

	ignoreCase, global, multiLine, dotAll := true, false, false, false
	for _, flag := range strings.TrimSpace(line[pos:]) {
		switch flag {
		case 'i':
			ignoreCase = true
		case 'g':
			global = true
		case 'm':
			multiLine = true
		case 's':
			dotAll = true
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}

	prefix := ""
	if ignoreCase {
		prefix += "i"
	}
	if multiLine {
		prefix += "m"
	}
	if dotAll {
		prefix += "s"
	}
	if prefix != "" {
		pattern = "(?" + prefix + ")" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return regexRule{re: re, replacement: replacementEscapes.Replace(replacement), global: global}, nil
}

func (r regexRule) apply(input string) (string, bool) {
	if r.global {
		output := r.re.ReplaceAllString(input, r.replacement)
		return output, output != input
	}

	loc := r.re.FindStringIndex(input)
	if loc == nil {
		return input, false
	}
	segment := input[loc[0]:loc[1]]
	output := input[:loc[0]] + r.re.ReplaceAllString(segment, r.replacement) + input[loc[1]:]
	return output, output != input
}

// parseDelimited reads up to the next unescaped delimiter, keeping escape
// sequences intact for the regex compiler.
func parseDelimited(line string, start int, delim byte) (string, int, error) {
	if start >= len(line) {
		return "", 0, errors.New("unexpected end of expression")
	}

	var builder strings.Builder
	escaped := false
	for index := start; index < len(line); index++ {
		char := line[index]
		if escaped {
			builder.WriteByte(char)
			escaped = false
			continue
		}
		if char == '\\' {
			escaped = true
			builder.WriteByte(char)
			continue
		}
		if char == delim {
			return builder.String(), index + 1, nil
		}
		builder.WriteByte(char)
	}
	return "", 0, errors.New("unterminated expression")
}

func looksLikeRegexRule(line string) bool {
	if len(line) < 2 || line[0] != 's' {
		return false
	}
	c := line[1]
	alphaNumeric := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
	return !alphaNumeric && c != ' ' && c != '\t'
}
