package xbpslog

// State is one of the named callback states from spec.md §7. Named
// constants replace the C library's integer enum with printf-style
// arguments; per the Design Notes in spec §9, callback payloads are
// typed fields on Event rather than a variadic argument list.
type State int

const (
	FetchStart State = iota
	FetchUpdate
	FetchEnd
	Verify
	VerifyFail
	UnpackFail
	RemoveFile
	RemoveFileFail
	AltGroupAdded
	AltGroupSwitched
	ConfigFile
	ShowInstallMsg
	TransAddPkg
	RepoKeyImport
)

func (s State) String() string {
	switch s {
	case FetchStart:
		return "FETCH_START"
	case FetchUpdate:
		return "FETCH_UPDATE"
	case FetchEnd:
		return "FETCH_END"
	case Verify:
		return "VERIFY"
	case VerifyFail:
		return "VERIFY_FAIL"
	case UnpackFail:
		return "UNPACK_FAIL"
	case RemoveFile:
		return "REMOVE_FILE"
	case RemoveFileFail:
		return "REMOVE_FILE_FAIL"
	case AltGroupAdded:
		return "ALTGROUP_ADDED"
	case AltGroupSwitched:
		return "ALTGROUP_SWITCHED"
	case ConfigFile:
		return "CONFIG_FILE"
	case ShowInstallMsg:
		return "SHOW_INSTALL_MSG"
	case TransAddPkg:
		return "TRANS_ADDPKG"
	case RepoKeyImport:
		return "REPO_KEY_IMPORT"
	default:
		return "UNKNOWN"
	}
}

// Event is one callback invocation. Fields beyond State are filled in
// as relevant; zero values mean "not applicable to this state".
type Event struct {
	State      State
	Pkgname    string
	Pkgver     string
	Repository string
	Path       string
	Percent    int    // FETCH_UPDATE progress
	Message    string // install-msg/remove-msg text, or a diagnostic
	Err        error  // set for *_FAIL states
	Key        []byte // REPO_KEY_IMPORT: the candidate public key blob
}

// EventSink receives progress/state events. Returning a non-nil error
// from RepoKeyImport rejects the candidate key (spec §7); the return
// value is otherwise advisory and ignored by callers.
type EventSink interface {
	Notify(Event) error
}

// LogSink is the default EventSink: it logs every event through a
// Logger and never rejects a key import (callers that need interactive
// confirmation should supply their own EventSink, e.g. from a CLI
// frontend prompting on stdin).
type LogSink struct {
	Log *Logger
}

// NewLogSink wraps l as an EventSink.
func NewLogSink(l *Logger) *LogSink { return &LogSink{Log: l} }

// Notify implements EventSink.
func (s *LogSink) Notify(ev Event) error {
	entry := s.Log.WithField("state", ev.State.String())
	if ev.Pkgname != "" {
		entry = entry.WithField("pkgname", ev.Pkgname)
	}
	if ev.Repository != "" {
		entry = entry.WithField("repository", ev.Repository)
	}
	if ev.Path != "" {
		entry = entry.WithField("path", ev.Path)
	}
	switch ev.State {
	case VerifyFail, UnpackFail, RemoveFileFail:
		entry.WithError(ev.Err).Warn(ev.Message)
	case ShowInstallMsg:
		entry.Info(ev.Message)
	default:
		entry.Debug(ev.Message)
	}
	return nil
}

// NopSink discards every event; useful for library callers that poll
// state some other way and for tests that don't want log noise.
type NopSink struct{}

// Notify implements EventSink.
func (NopSink) Notify(Event) error { return nil }

// RecordingSink collects events in order, for test assertions.
type RecordingSink struct {
	Events []Event
}

// Notify implements EventSink.
func (s *RecordingSink) Notify(ev Event) error {
	s.Events = append(s.Events, ev)
	return nil
}
