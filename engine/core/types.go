package core

import (
	"github.com/google/uuid"
)

// ID represents a unique identifier
type ID string

// NewID generates a new unique ID
func NewID() ID {
	return ID(uuid.New().String())
}

// String returns the string representation of the ID
func (id ID) String() string {
	return string(id)
}

// Severity represents the severity of a security finding
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Position represents a location inside a source file
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Match represents a single pattern match reported by the engine
type Match struct {
	Text     string            `json:"text"`
	Start    Position          `json:"start"`
	End      Position          `json:"end"`
	MetaVars map[string]string `json:"meta_vars,omitempty"`
}

// FileResult aggregates the matches found in one file
type FileResult struct {
	File     string  `json:"file"`
	Language string  `json:"language"`
	Matches  []Match `json:"matches"`
	Lines    int     `json:"lines,omitempty"`
	FileSize int     `json:"file_size,omitempty"`
}

// SecurityPattern describes one heuristic audit rule
type SecurityPattern struct {
	Pattern  string   `json:"pattern"  yaml:"pattern"`
	Severity Severity `json:"severity" yaml:"severity"`
	Issue    string   `json:"issue"    yaml:"issue"`
}

// SecurityFinding is a FileResult annotated with the rule that produced it
type SecurityFinding struct {
	FileResult
	Rule SecurityPattern `json:"rule"`
}
