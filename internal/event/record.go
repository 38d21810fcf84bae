package event

import (
	"fmt"
	"time"

	"github.com/fakeyudi/buildtrace/internal/snapshot"
)

// TypeSnapshot marks a record that carries project state rather than a
// notification.
const TypeSnapshot = "Snapshot"

// Record is the flat, serializable form of a notification or a snapshot
// update in a recorded stream.
type Record struct {
	Type       string    `json:"type" msgpack:"type"`
	Timestamp  time.Time `json:"timestamp" msgpack:"timestamp"`
	Message    string    `json:"message,omitempty" msgpack:"message,omitempty"`
	SenderName string    `json:"senderName,omitempty" msgpack:"senderName,omitempty"`
	Succeeded  bool      `json:"succeeded,omitempty" msgpack:"succeeded,omitempty"`

	ProjectFile       string              `json:"projectFile,omitempty" msgpack:"projectFile,omitempty"`
	ProjectInstanceID int                 `json:"projectInstanceId,omitempty" msgpack:"projectInstanceId,omitempty"`
	TargetNames       string              `json:"targetNames,omitempty" msgpack:"targetNames,omitempty"`
	Properties        snapshot.Properties `json:"properties,omitempty" msgpack:"properties,omitempty"`
	TargetName        string              `json:"targetName,omitempty" msgpack:"targetName,omitempty"`
	TargetFile        string              `json:"targetFile,omitempty" msgpack:"targetFile,omitempty"`
	TaskName          string              `json:"taskName,omitempty" msgpack:"taskName,omitempty"`
	TaskFile          string              `json:"taskFile,omitempty" msgpack:"taskFile,omitempty"`

	Importance  string `json:"importance,omitempty" msgpack:"importance,omitempty"`
	Code        string `json:"code,omitempty" msgpack:"code,omitempty"`
	Subcategory string `json:"subcategory,omitempty" msgpack:"subcategory,omitempty"`
	HelpKeyword string `json:"helpKeyword,omitempty" msgpack:"helpKeyword,omitempty"`
	File        string `json:"file,omitempty" msgpack:"file,omitempty"`
	Line        int    `json:"line,omitempty" msgpack:"line,omitempty"`
	EndLine     int    `json:"endLine,omitempty" msgpack:"endLine,omitempty"`
	Column      int    `json:"column,omitempty" msgpack:"column,omitempty"`
	EndColumn   int    `json:"endColumn,omitempty" msgpack:"endColumn,omitempty"`

	Snapshot *snapshot.Snapshot `json:"snapshot,omitempty" msgpack:"snapshot,omitempty"`
}

// IsSnapshot reports whether r is a snapshot update.
func (r Record) IsSnapshot() bool { return r.Type == TypeSnapshot }

// SnapshotRecord builds a snapshot update for a project instance.
func SnapshotRecord(projectInstanceID int, s *snapshot.Snapshot) Record {
	return Record{Type: TypeSnapshot, ProjectInstanceID: projectInstanceID, Snapshot: s}
}

func (r Record) header() Header {
	return Header{Timestamp: r.Timestamp, Message: r.Message, SenderName: r.SenderName}
}

func (r Record) diagnostic() Diagnostic {
	return Diagnostic{Code: r.Code, Subcategory: r.Subcategory, HelpKeyword: r.HelpKeyword}
}

func (r Record) location() Location {
	return Location{File: r.File, Line: r.Line, EndLine: r.EndLine, Column: r.Column, EndColumn: r.EndColumn}
}

// Notification converts r into its typed variant.
func (r Record) Notification() (Notification, error) {
	h := r.header()
	switch Kind(r.Type) {
	case KindBuildStarted:
		return BuildStarted{Header: h}, nil
	case KindBuildFinished:
		return BuildFinished{Header: h, Succeeded: r.Succeeded}, nil
	case KindProjectStarted:
		return ProjectStarted{Header: h, ProjectFile: r.ProjectFile, ProjectInstanceID: r.ProjectInstanceID,
			TargetNames: r.TargetNames, Properties: r.Properties}, nil
	case KindProjectFinished:
		return ProjectFinished{Header: h, ProjectFile: r.ProjectFile, ProjectInstanceID: r.ProjectInstanceID,
			Succeeded: r.Succeeded}, nil
	case KindTargetStarted:
		return TargetStarted{Header: h, TargetName: r.TargetName, TargetFile: r.TargetFile, ProjectFile: r.ProjectFile}, nil
	case KindTargetFinished:
		return TargetFinished{Header: h, TargetName: r.TargetName, TargetFile: r.TargetFile, ProjectFile: r.ProjectFile,
			Succeeded: r.Succeeded}, nil
	case KindTaskStarted:
		return TaskStarted{Header: h, TaskName: r.TaskName, TaskFile: r.TaskFile, ProjectFile: r.ProjectFile,
			ProjectInstanceID: r.ProjectInstanceID}, nil
	case KindTaskFinished:
		return TaskFinished{Header: h, TaskName: r.TaskName, TaskFile: r.TaskFile, ProjectFile: r.ProjectFile,
			ProjectInstanceID: r.ProjectInstanceID, Succeeded: r.Succeeded}, nil
	case KindMessage:
		imp, err := ParseImportance(r.Importance)
		if err != nil {
			return nil, err
		}
		return Message{Header: h, Diagnostic: r.diagnostic(), Importance: imp}, nil
	case KindWarning:
		return Warning{Header: h, Diagnostic: r.diagnostic(), Location: r.location()}, nil
	case KindError:
		return Error{Header: h, Diagnostic: r.diagnostic(), Location: r.location()}, nil
	default:
		return nil, fmt.Errorf("unknown record type %q", r.Type)
	}
}

// FromNotification flattens n into a Record.
func FromNotification(n Notification) Record {
	h := n.Head()
	r := Record{Type: string(n.Kind()), Timestamp: h.Timestamp, Message: h.Message, SenderName: h.SenderName}
	setDiag := func(d Diagnostic) {
		r.Code, r.Subcategory, r.HelpKeyword = d.Code, d.Subcategory, d.HelpKeyword
	}
	setLoc := func(l Location) {
		r.File, r.Line, r.EndLine, r.Column, r.EndColumn = l.File, l.Line, l.EndLine, l.Column, l.EndColumn
	}
	switch e := n.(type) {
	case BuildStarted:
	case BuildFinished:
		r.Succeeded = e.Succeeded
	case ProjectStarted:
		r.ProjectFile, r.ProjectInstanceID, r.TargetNames, r.Properties = e.ProjectFile, e.ProjectInstanceID, e.TargetNames, e.Properties
	case ProjectFinished:
		r.ProjectFile, r.ProjectInstanceID, r.Succeeded = e.ProjectFile, e.ProjectInstanceID, e.Succeeded
	case TargetStarted:
		r.TargetName, r.TargetFile, r.ProjectFile = e.TargetName, e.TargetFile, e.ProjectFile
	case TargetFinished:
		r.TargetName, r.TargetFile, r.ProjectFile, r.Succeeded = e.TargetName, e.TargetFile, e.ProjectFile, e.Succeeded
	case TaskStarted:
		r.TaskName, r.TaskFile, r.ProjectFile, r.ProjectInstanceID = e.TaskName, e.TaskFile, e.ProjectFile, e.ProjectInstanceID
	case TaskFinished:
		r.TaskName, r.TaskFile, r.ProjectFile, r.ProjectInstanceID, r.Succeeded = e.TaskName, e.TaskFile, e.ProjectFile, e.ProjectInstanceID, e.Succeeded
	case Message:
		setDiag(e.Diagnostic)
		r.Importance = e.Importance.String()
	case Warning:
		setDiag(e.Diagnostic)
		setLoc(e.Location)
	case Error:
		setDiag(e.Diagnostic)
		setLoc(e.Location)
	}
	return r
}
