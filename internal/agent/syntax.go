package agent

import (
	"encoding/json"
	"fmt"
	"go/parser"
	"go/token"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// syntaxCheck validates that code is well-formed for its language.
type syntaxCheck func(code string) error

// syntaxChecks maps file extensions to validators. Extensions without
// an entry are skipped: an unknown language is not a syntax error.
var syntaxChecks = map[string]syntaxCheck{
	".go":   checkGoSyntax,
	".json": checkJSONSyntax,
	".yaml": checkYAMLSyntax,
	".yml":  checkYAMLSyntax,
	".py":   checkPythonSyntax,
}

// ValidateSyntax checks code against the validator registered for the
// path's extension. It gates every fix: broken syntax never reaches the
// target file.
func ValidateSyntax(path, code string) error {
	check, ok := syntaxChecks[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil
	}
	if err := check(code); err != nil {
		return fmt.Errorf("syntax check failed for %s: %w", filepath.Base(path), err)
	}
	return nil
}

func checkGoSyntax(code string) error {
	fset := token.NewFileSet()
	_, err := parser.ParseFile(fset, "fix.go", code, parser.ParseComments)
	return err
}

func checkJSONSyntax(code string) error {
	var v interface{}
	return json.Unmarshal([]byte(code), &v)
}

func checkYAMLSyntax(code string) error {
	var v interface{}
	return yaml.Unmarshal([]byte(code), &v)
}

// tripleQuoted strips docstrings before the bracket scan so their
// contents cannot unbalance it.
var tripleQuoted = regexp.MustCompile(`(?s)("""|''').*?("""|''')`)

// checkPythonSyntax is structural, not a full parse: it rejects the
// damage a truncated completion typically causes (unbalanced brackets,
// unterminated strings, stray fence markers).
func checkPythonSyntax(code string) error {
	if strings.Contains(code, "```") {
		return fmt.Errorf("markdown fence marker in code")
	}
	code = tripleQuoted.ReplaceAllString(code, `""`)

	var stack []rune
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	inComment := false
	inString := false
	var quote rune
	escaped := false

	for _, ch := range code {
		if inComment {
			if ch == '\n' {
				inComment = false
			}
			continue
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == quote, ch == '\n':
				inString = false
			}
			continue
		}
		switch ch {
		case '#':
			inComment = true
		case '\'', '"':
			inString = true
			quote = ch
		case '(', '[', '{':
			stack = append(stack, ch)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[ch] {
				return fmt.Errorf("unbalanced %q", ch)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return fmt.Errorf("unclosed %q", stack[len(stack)-1])
	}
	return nil
}
