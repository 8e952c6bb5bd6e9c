package search

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/compozy/astsearch/engine/core"
)

// builtinAuditPatterns are the default security heuristics per language.
// They are deliberately coarse string-level AST patterns, not a static
// analyzer; matching is still delegated to the engine.
var builtinAuditPatterns = map[string][]core.SecurityPattern{
	"rust": {
		{Pattern: "unwrap()", Severity: core.SeverityMedium, Issue: "Potential panic"},
		{Pattern: "expect($MSG)", Severity: core.SeverityMedium, Issue: "Potential panic"},
		{Pattern: "unsafe { $$$CODE }", Severity: core.SeverityHigh, Issue: "Unsafe code block"},
		{Pattern: "ptr::$FUNC", Severity: core.SeverityHigh, Issue: "Raw pointer operations"},
	},
	"python": {
		{Pattern: "eval($CODE)", Severity: core.SeverityHigh, Issue: "Code injection risk"},
		{Pattern: "exec($CODE)", Severity: core.SeverityHigh, Issue: "Code injection risk"},
		{Pattern: "subprocess.call($$$ARGS, shell=True)", Severity: core.SeverityHigh, Issue: "Shell injection risk"},
		{Pattern: "open($FILE, 'w')", Severity: core.SeverityLow, Issue: "File write without checks"},
	},
	"javascript": {
		{Pattern: "eval($CODE)", Severity: core.SeverityHigh, Issue: "Code injection risk"},
		{Pattern: "innerHTML = $VAL", Severity: core.SeverityMedium, Issue: "XSS risk"},
		{Pattern: "document.write($VAL)", Severity: core.SeverityMedium, Issue: "XSS risk"},
	},
	"go": {
		{Pattern: "unsafe.Pointer($X)", Severity: core.SeverityHigh, Issue: "Unsafe pointer conversion"},
		{Pattern: "exec.Command($CMD, $$$ARGS)", Severity: core.SeverityMedium, Issue: "Command execution"},
		{Pattern: "_ = $ERR", Severity: core.SeverityLow, Issue: "Discarded error"},
	},
}

// AuditLanguages lists the languages with built-in audit patterns
func AuditLanguages() []string {
	languages := make([]string, 0, len(builtinAuditPatterns))
	for lang := range builtinAuditPatterns {
		languages = append(languages, lang)
	}
	return languages
}

// AuditPatterns returns the audit rules for a language, optionally extended
// from a YAML file (language -> pattern list) and filtered by severity
func AuditPatterns(language string, severities []core.Severity, patternsFile string) ([]core.SecurityPattern, error) {
	patterns, ok := builtinAuditPatterns[language]
	if !ok {
		return nil, core.NewError(
			fmt.Errorf("security patterns not available for language: %s", language),
			core.ErrorCodeLanguageUnsupported,
			map[string]any{"language": language, "available": AuditLanguages()},
		)
	}
	patterns = append([]core.SecurityPattern(nil), patterns...)

	if patternsFile != "" {
		extra, err := loadPatternsFile(patternsFile)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, extra[language]...)
	}

	if len(severities) == 0 {
		return patterns, nil
	}

	wanted := make(map[core.Severity]bool, len(severities))
	for _, s := range severities {
		wanted[s] = true
	}
	filtered := make([]core.SecurityPattern, 0, len(patterns))
	for _, p := range patterns {
		if wanted[p.Severity] {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func loadPatternsFile(path string) (map[string][]core.SecurityPattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewError(
			fmt.Errorf("cannot read patterns file: %w", err),
			core.ErrorCodeConfigNotFound,
			map[string]any{"path": path},
		)
	}
	var patterns map[string][]core.SecurityPattern
	if err := yaml.Unmarshal(data, &patterns); err != nil {
		return nil, core.NewError(
			fmt.Errorf("cannot parse patterns file: %w", err),
			core.ErrorCodeConfigInvalid,
			map[string]any{"path": path},
		)
	}
	return patterns, nil
}
