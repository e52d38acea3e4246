package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEngineLiteralAndRegexRules(t *testing.T) {
	t.Parallel()

	engine, err := Parse(`
# spoken punctuation
komma => ,
# squeeze space before punctuation
s/\s+([,.!?])/$1/g
`, 30)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	output, err := engine.Apply("dag allemaal komma tot morgen")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "dag allemaal, tot morgen" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestEngineReplacementEscapes(t *testing.T) {
	t.Parallel()

	engine, err := Parse(`nieuwe regel => \n`, 30)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	output, err := engine.Apply("eerste nieuwe regel tweede")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "eerste \n tweede" {
		t.Fatalf("expected a literal newline, got %q", output)
	}
}

func TestEngineLiteralMatchesCaseInsensitively(t *testing.T) {
	t.Parallel()

	engine, err := Parse(`pull request => PR`, 30)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	output, err := engine.Apply("open een Pull Request")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "open een PR" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestEngineLiteralDollarStaysLiteral(t *testing.T) {
	t.Parallel()

	engine, err := Parse(`euro teken => $1`, 30)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	output, err := engine.Apply("euro teken")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "$1" {
		t.Fatalf("expected literal replacement, got %q", output)
	}
}

func TestEngineIteratesUntilStable(t *testing.T) {
	t.Parallel()

	engine, err := Parse("a => b\nb => c\n", 5)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	output, err := engine.Apply("a")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "c" {
		t.Fatalf("expected c, got %q", output)
	}
}

func TestEngineLoopLimitStopsCycles(t *testing.T) {
	t.Parallel()

	engine, err := Parse("ping => pong\npong => ping\n", 4)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	// Must terminate; the final value depends on the limit parity only.
	if _, err := engine.Apply("ping"); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
}

func TestEngineLiteralRuleStartingWithS(t *testing.T) {
	t.Parallel()

	engine, err := Parse(`solid complaint => SOLID-compliant`, 30)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	output, err := engine.Apply("solid complaint plan")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "SOLID-compliant plan" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestRegexRuleWithoutGlobalReplacesFirstMatchOnly(t *testing.T) {
	t.Parallel()

	rule, err := parseRegexRule(`s/foo/bar/`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	output, changed := rule.apply("foo foo")
	if !changed {
		t.Fatalf("expected changed=true")
	}
	if output != "bar foo" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestParseRegexRuleUnsupportedFlag(t *testing.T) {
	t.Parallel()

	if _, err := parseRegexRule(`s/foo/bar/x`); err == nil {
		t.Fatalf("expected unsupported flag error")
	}
}

func TestParseUnsupportedLineReportsLineNumber(t *testing.T) {
	t.Parallel()

	_, err := Parse("a => b\nnot-a-rule\n", 30)
	if err == nil {
		t.Fatalf("expected unsupported rule format error")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line number in error, got %q", err.Error())
	}
}

func TestLoadMissingFilePassesThrough(t *testing.T) {
	t.Parallel()

	engine, err := Load(filepath.Join(t.TempDir(), "absent.rules"), 30)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if engine.Len() != 0 {
		t.Fatalf("expected no rules, got %d", engine.Len())
	}

	output, err := engine.Apply("onveranderd")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "onveranderd" {
		t.Fatalf("expected passthrough, got %q", output)
	}
}

func TestLoadReadsRulesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "substitutions.rules")
	if err := os.WriteFile(path, []byte("vraagteken => ?\n"), 0o600); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	engine, err := Load(path, 30)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if engine.Len() != 1 {
		t.Fatalf("expected 1 rule, got %d", engine.Len())
	}

	output, err := engine.Apply("hoe laat is het vraagteken")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "hoe laat is het ?" {
		t.Fatalf("unexpected output: %q", output)
	}
}
