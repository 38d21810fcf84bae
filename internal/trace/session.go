// Package trace builds a hierarchical trace tree from a flat stream of build
// notifications and attaches project state changes to it.
package trace

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fakeyudi/buildtrace/internal/event"
	"github.com/fakeyudi/buildtrace/internal/snapshot"
	"github.com/fakeyudi/buildtrace/internal/verbosity"
)

// SnapshotProvider resolves a project instance to its current state.
// The second result is false when no state is available.
type SnapshotProvider interface {
	Snapshot(projectInstanceID int) (*snapshot.Snapshot, bool)
}

// ProviderFunc adapts a function to SnapshotProvider.
type ProviderFunc func(projectInstanceID int) (*snapshot.Snapshot, bool)

func (f ProviderFunc) Snapshot(id int) (*snapshot.Snapshot, bool) { return f(id) }

// Handler consumes notifications one at a time.
type Handler interface {
	Handle(n event.Notification) error
}

// Options configures a Session.
type Options struct {
	Verbosity             verbosity.Level
	IncludeSummaryBuckets bool
	ItemEquality          snapshot.ItemEquality

	// Parameters are extra name/value pairs listed in the Parameters dump.
	Parameters snapshot.Properties

	Provider SnapshotProvider
	Logger   *slog.Logger
	Now      func() time.Time
}

// DefaultOptions returns Normal verbosity with summary buckets enabled.
func DefaultOptions() Options {
	return Options{Verbosity: verbosity.Normal, IncludeSummaryBuckets: true}
}

// Session observes one build run. It is not safe for concurrent use; the
// host delivers notifications in order from a single goroutine.
type Session struct {
	id       string
	opts     Options
	started  time.Time
	root     *Node
	stack    *ScopeStack
	comparer snapshot.Comparer
	log      *slog.Logger

	// summary buckets keyed by the build node they belong to
	warnings map[*Node]*Node
	errors   map[*Node]*Node

	err  error
	done bool
}

// NewSession validates opts and starts an empty trace.
func NewSession(opts Options) (*Session, error) {
	if !opts.Verbosity.Valid() {
		return nil, &verbosity.MisconfigurationError{Value: strconv.Itoa(int(opts.Verbosity))}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Session{
		id:       uuid.New().String(),
		opts:     opts,
		started:  opts.Now(),
		root:     &Node{Kind: KindRoot},
		comparer: snapshot.Comparer{Items: opts.ItemEquality},
		warnings: make(map[*Node]*Node),
		errors:   make(map[*Node]*Node),
	}
	s.root.Started = s.started
	s.stack = NewScopeStack(s.root)
	s.log = logger.With("session", s.id)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Err returns the fatal error that aborted the session, if any.
func (s *Session) Err() error { return s.err }

// Done reports whether the outermost build has finished.
func (s *Session) Done() bool { return s.done }

// Trace returns the document built so far. After a fatal error it holds the
// partial tree.
func (s *Session) Trace() *Trace {
	return &Trace{ID: s.id, Started: s.started, Verbosity: s.opts.Verbosity, Root: s.root}
}

// Handle applies one notification. Once a ProtocolViolation has occurred
// every call returns that error.
func (s *Session) Handle(n event.Notification) error {
	if s.err != nil {
		return s.err
	}
	var err error
	switch e := n.(type) {
	case event.BuildStarted:
		s.buildStarted(e)
	case event.BuildFinished:
		err = s.buildFinished(e)
	case event.ProjectStarted:
		s.projectStarted(e)
	case event.ProjectFinished:
		err = s.projectFinished(e)
	case event.TargetStarted:
		s.targetStarted(e)
	case event.TargetFinished:
		err = s.targetFinished(e)
	case event.TaskStarted:
		s.taskStarted(e)
	case event.TaskFinished:
		err = s.taskFinished(e)
	case event.Message:
		s.message(e)
	case event.Warning:
		s.warningRaised(e)
	case event.Error:
		s.errorRaised(e)
	}
	if err != nil {
		s.err = err
		s.log.Error("trace session aborted", "error", err, "depth", s.stack.Depth())
	}
	return err
}

// Drain handles notifications from ch until it is closed, ctx is cancelled
// or a notification fails.
func (s *Session) Drain(ctx context.Context, ch <-chan event.Notification) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-ch:
			if !ok {
				return nil
			}
			if err := s.Handle(n); err != nil {
				return err
			}
		}
	}
}

func (s *Session) allows(f verbosity.Feature) bool { return s.opts.Verbosity.Allows(f) }

// open pushes a scope and attaches its node to the scope that was current
// before the push.
func (s *Session) open(k ScopeKind, ts time.Time) *Frame {
	parent := s.stack.Current()
	f := s.stack.Push(k)
	f.Node.Started = ts
	parent.Append(f.Node)
	s.log.Debug("scope started", "scope", k.String(), "depth", s.stack.Depth())
	return f
}

func (s *Session) close(k ScopeKind, n event.Notification, succeeded bool) (*Frame, error) {
	f, err := s.stack.Pop(k, n.Kind())
	if err != nil {
		return nil, err
	}
	f.Node.Finished = n.Head().Timestamp
	f.Node.Succeeded = &succeeded
	s.log.Debug("scope finished", "scope", k.String(), "depth", s.stack.Depth())
	return f, nil
}

func setIf(n *Node, name, value string) {
	if value != "" {
		n.SetAttr(name, value)
	}
}

func textNode(k Kind, text string) *Node {
	return &Node{Kind: k, Text: text}
}

func (s *Session) buildStarted(e event.BuildStarted) {
	n := s.open(ScopeBuild, e.Timestamp).Node
	n.SetAttr("Verbosity", s.opts.Verbosity.String())
	if s.allows(verbosity.Parameters) {
		n.Append(&Node{Kind: KindParameters, Entries: s.parameters()})
	}
	if e.Message != "" {
		n.Append(textNode(KindMessage, e.Message))
	}
}

func (s *Session) parameters() snapshot.Properties {
	params := snapshot.Properties{
		{Name: "verbosity", Value: s.opts.Verbosity.String()},
		{Name: "summary", Value: strconv.FormatBool(s.opts.IncludeSummaryBuckets)},
		{Name: "itemEquality", Value: s.opts.ItemEquality.String()},
	}
	return append(params, s.opts.Parameters...)
}

func (s *Session) buildFinished(e event.BuildFinished) error {
	f, err := s.close(ScopeBuild, e, e.Succeeded)
	if err != nil {
		return err
	}
	if e.Message != "" {
		f.Node.Append(textNode(KindMessage, e.Message))
	}
	if s.stack.Pending(ScopeBuild) == 0 {
		s.done = true
	}
	return nil
}

func (s *Session) projectStarted(e event.ProjectStarted) {
	f := s.open(ScopeProject, e.Timestamp)
	n := f.Node
	n.SetAttr("Name", e.ProjectFile)
	setIf(n, "Message", e.Message)
	setIf(n, "TargetNames", e.TargetNames)
	if s.allows(verbosity.SenderIdentity) {
		setIf(n, "SenderName", e.SenderName)
	}

	f.before, f.hasBefore = s.snapshot(e.ProjectInstanceID)

	if s.allows(verbosity.PropertyDump) {
		props := e.Properties
		if len(props) == 0 && f.hasBefore {
			props = f.before.Properties
		}
		dump := &Node{Kind: KindProperties}
		for _, p := range props {
			if p.Name == "" || p.Value == "" {
				continue
			}
			dump.Entries = append(dump.Entries, p)
		}
		n.Append(dump)
	}
}

func (s *Session) projectFinished(e event.ProjectFinished) error {
	f, err := s.close(ScopeProject, e, e.Succeeded)
	if err != nil {
		return err
	}
	n := f.Node
	n.Append(&Node{Kind: KindTargetsExecuted, Values: s.stack.TargetsSince(f)})

	after, ok := s.snapshot(e.ProjectInstanceID)
	if !f.hasBefore || !ok {
		s.log.Debug("project state unavailable, skipping change summary",
			"project", e.ProjectFile, "instance", e.ProjectInstanceID)
		return nil
	}
	res := s.comparer.Compare(f.before, after)
	if !res.AreEqual {
		n.Append(&Node{Kind: KindChanges, Changes: &res})
	}
	return nil
}

func (s *Session) snapshot(id int) (*snapshot.Snapshot, bool) {
	if s.opts.Provider == nil {
		return nil, false
	}
	snap, ok := s.opts.Provider.Snapshot(id)
	if !ok || snap == nil {
		return nil, false
	}
	return snap, true
}

func (s *Session) targetStarted(e event.TargetStarted) {
	s.stack.RecordTarget(e.TargetName)
	n := s.open(ScopeTarget, e.Timestamp).Node
	n.SetAttr("Name", e.TargetName)
	setIf(n, "Message", e.Message)
	if s.allows(verbosity.FileDetail) {
		setIf(n, "TargetFile", e.TargetFile)
		setIf(n, "ProjectFile", e.ProjectFile)
	}
}

func (s *Session) targetFinished(e event.TargetFinished) error {
	f, err := s.close(ScopeTarget, e, e.Succeeded)
	if err != nil {
		return err
	}
	if s.allows(verbosity.FinishMessage) {
		setIf(f.Node, "FinishMessage", e.Message)
	}
	return nil
}

func (s *Session) taskStarted(e event.TaskStarted) {
	n := s.open(ScopeTask, e.Timestamp).Node
	n.SetAttr("Name", e.TaskName)
}

func (s *Session) taskFinished(e event.TaskFinished) error {
	f, err := s.close(ScopeTask, e, e.Succeeded)
	if err != nil {
		return err
	}
	if s.allows(verbosity.FinishMessage) {
		setIf(f.Node, "FinishMessage", e.Message)
	}
	if s.allows(verbosity.FileDetail) {
		setIf(f.Node, "ProjectFile", e.ProjectFile)
		setIf(f.Node, "TaskFile", e.TaskFile)
	}
	return nil
}

// includeMessage applies the importance gate.
func (s *Session) includeMessage(imp event.Importance) bool {
	switch imp {
	case event.High:
		return true
	case event.Normal:
		return s.allows(verbosity.NormalImportance)
	case event.Low:
		return s.allows(verbosity.LowImportance)
	default:
		return false
	}
}

func (s *Session) message(e event.Message) {
	if !s.includeMessage(e.Importance) {
		s.log.Debug("message filtered", "importance", e.Importance.String())
		return
	}
	n := textNode(KindMessage, e.Message)
	n.SetAttr("Importance", e.Importance.String())
	if strings.TrimSpace(e.HelpKeyword) != "" {
		n.SetAttr("MessageKeyword", e.HelpKeyword)
	}
	if s.allows(verbosity.SenderIdentity) {
		setIf(n, "SenderName", e.SenderName)
	}
	s.stack.Current().Append(n)
}

func (s *Session) warningRaised(e event.Warning) {
	n := &Node{Kind: KindWarning}
	n.Append(textNode(KindMessage, event.FormatWarning(e)))
	setDiagnostic(n, e.Diagnostic)
	if s.allows(verbosity.Location) {
		n.Append(locationNode(e.Location))
	}
	s.stack.Current().Append(n)
	if s.opts.IncludeSummaryBuckets {
		s.bucket(s.warnings, KindWarnings).Append(n.Clone())
	}
}

func (s *Session) errorRaised(e event.Error) {
	n := &Node{Kind: KindError}
	n.Append(textNode(KindMessage, event.FormatError(e)))
	setIf(n, "File", e.File)
	setDiagnostic(n, e.Diagnostic)
	n.Append(locationNode(e.Location))
	s.stack.Current().Append(n)
	if s.opts.IncludeSummaryBuckets {
		s.bucket(s.errors, KindErrors).Append(n.Clone())
	}
}

func setDiagnostic(n *Node, d event.Diagnostic) {
	setIf(n, "Code", d.Code)
	setIf(n, "Subcategory", d.Subcategory)
	if strings.TrimSpace(d.HelpKeyword) != "" {
		n.SetAttr("Hint", d.HelpKeyword)
	}
}

func locationNode(l event.Location) *Node {
	n := &Node{Kind: KindLocation}
	n.SetAttr("Line", strconv.Itoa(l.Line))
	if l.HasEndLine() {
		n.SetAttr("EndLine", strconv.Itoa(l.EndLine))
	}
	n.SetAttr("ColumnNumber", strconv.Itoa(l.Column))
	if l.HasEndColumn() {
		n.SetAttr("EndColumnNumber", strconv.Itoa(l.EndColumn))
	}
	return n
}

// bucket returns the summary node of kind k for the innermost pending build,
// creating it on first use. Without a pending build the root owns it.
func (s *Session) bucket(buckets map[*Node]*Node, k Kind) *Node {
	owner := s.root
	if f := s.stack.Top(ScopeBuild); f != nil {
		owner = f.Node
	}
	if b, ok := buckets[owner]; ok {
		return b
	}
	b := owner.Append(&Node{Kind: k})
	buckets[owner] = b
	return b
}
