// Package event defines the lifecycle notifications a build engine emits.
//
// Notification is a closed set of variants; consumers switch on the concrete
// type.
package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/fakeyudi/buildtrace/internal/snapshot"
)

// Notification is one of the variant types declared in this package.
type Notification interface {
	Head() Header
	Kind() Kind
	notification()
}

// Kind names a notification variant. The values are part of the recorded
// stream format.
type Kind string

const (
	KindBuildStarted    Kind = "BuildStarted"
	KindBuildFinished   Kind = "BuildFinished"
	KindProjectStarted  Kind = "ProjectStarted"
	KindProjectFinished Kind = "ProjectFinished"
	KindTargetStarted   Kind = "TargetStarted"
	KindTargetFinished  Kind = "TargetFinished"
	KindTaskStarted     Kind = "TaskStarted"
	KindTaskFinished    Kind = "TaskFinished"
	KindMessage         Kind = "Message"
	KindWarning         Kind = "Warning"
	KindError           Kind = "Error"
)

// Header holds the fields every notification carries.
type Header struct {
	Timestamp  time.Time
	Message    string
	SenderName string
}

// Importance ranks a Message.
type Importance uint8

const (
	High Importance = iota
	Normal
	Low
)

func (i Importance) String() string {
	switch i {
	case High:
		return "High"
	case Normal:
		return "Normal"
	case Low:
		return "Low"
	default:
		return "Unknown"
	}
}

// ParseImportance accepts High, Normal or Low in any case. Empty means Normal.
func ParseImportance(s string) (Importance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return High, nil
	case "normal", "":
		return Normal, nil
	case "low":
		return Low, nil
	default:
		return Normal, fmt.Errorf("unknown message importance %q", s)
	}
}

// Location is a source position. End values are zero when absent.
type Location struct {
	File      string
	Line      int
	EndLine   int
	Column    int
	EndColumn int
}

// HasEndLine reports whether EndLine lies past Line.
func (l Location) HasEndLine() bool { return l.EndLine > l.Line }

// HasEndColumn reports whether EndColumn lies past Column.
func (l Location) HasEndColumn() bool { return l.EndColumn > l.Column }

// Diagnostic holds the code fields shared by messages, warnings and errors.
type Diagnostic struct {
	Code        string
	Subcategory string
	HelpKeyword string
}

type BuildStarted struct {
	Header
}

type BuildFinished struct {
	Header
	Succeeded bool
}

type ProjectStarted struct {
	Header
	ProjectFile       string
	ProjectInstanceID int
	TargetNames       string
	Properties        snapshot.Properties
}

type ProjectFinished struct {
	Header
	ProjectFile       string
	ProjectInstanceID int
	Succeeded         bool
}

type TargetStarted struct {
	Header
	TargetName  string
	TargetFile  string
	ProjectFile string
}

type TargetFinished struct {
	Header
	TargetName  string
	TargetFile  string
	ProjectFile string
	Succeeded   bool
}

type TaskStarted struct {
	Header
	TaskName          string
	TaskFile          string
	ProjectFile       string
	ProjectInstanceID int
}

type TaskFinished struct {
	Header
	TaskName          string
	TaskFile          string
	ProjectFile       string
	ProjectInstanceID int
	Succeeded         bool
}

type Message struct {
	Header
	Diagnostic
	Importance Importance
}

type Warning struct {
	Header
	Diagnostic
	Location
}

type Error struct {
	Header
	Diagnostic
	Location
}

func (e BuildStarted) Head() Header    { return e.Header }
func (e BuildFinished) Head() Header   { return e.Header }
func (e ProjectStarted) Head() Header  { return e.Header }
func (e ProjectFinished) Head() Header { return e.Header }
func (e TargetStarted) Head() Header   { return e.Header }
func (e TargetFinished) Head() Header  { return e.Header }
func (e TaskStarted) Head() Header     { return e.Header }
func (e TaskFinished) Head() Header    { return e.Header }
func (e Message) Head() Header         { return e.Header }
func (e Warning) Head() Header         { return e.Header }
func (e Error) Head() Header           { return e.Header }

func (BuildStarted) Kind() Kind    { return KindBuildStarted }
func (BuildFinished) Kind() Kind   { return KindBuildFinished }
func (ProjectStarted) Kind() Kind  { return KindProjectStarted }
func (ProjectFinished) Kind() Kind { return KindProjectFinished }
func (TargetStarted) Kind() Kind   { return KindTargetStarted }
func (TargetFinished) Kind() Kind  { return KindTargetFinished }
func (TaskStarted) Kind() Kind     { return KindTaskStarted }
func (TaskFinished) Kind() Kind    { return KindTaskFinished }
func (Message) Kind() Kind         { return KindMessage }
func (Warning) Kind() Kind         { return KindWarning }
func (Error) Kind() Kind           { return KindError }

func (BuildStarted) notification()    {}
func (BuildFinished) notification()   {}
func (ProjectStarted) notification()  {}
func (ProjectFinished) notification() {}
func (TargetStarted) notification()   {}
func (TargetFinished) notification()  {}
func (TaskStarted) notification()     {}
func (TaskFinished) notification()    {}
func (Message) notification()         {}
func (Warning) notification()         {}
func (Error) notification()           {}

// FormatWarning renders a warning in the canonical
// "file(line,col): subcategory warning CODE: message" form.
func FormatWarning(w Warning) string {
	return formatDiagnostic(w.Location, w.Diagnostic, "warning", w.Message)
}

// FormatError renders an error in the same form as FormatWarning.
func FormatError(e Error) string {
	return formatDiagnostic(e.Location, e.Diagnostic, "error", e.Message)
}

func formatDiagnostic(loc Location, d Diagnostic, severity, message string) string {
	var sb strings.Builder
	if loc.File != "" {
		sb.WriteString(loc.File)
		if loc.Line > 0 {
			sb.WriteByte('(')
			fmt.Fprintf(&sb, "%d", loc.Line)
			if loc.Column > 0 {
				fmt.Fprintf(&sb, ",%d", loc.Column)
			}
			sb.WriteByte(')')
		}
		sb.WriteString(": ")
	}
	if d.Subcategory != "" {
		sb.WriteString(d.Subcategory)
		sb.WriteByte(' ')
	}
	sb.WriteString(severity)
	if d.Code != "" {
		sb.WriteByte(' ')
		sb.WriteString(d.Code)
	}
	sb.WriteString(": ")
	sb.WriteString(message)
	return sb.String()
}
