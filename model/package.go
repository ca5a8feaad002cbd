// Package model holds the pkgdb data model (spec.md §3): the package
// record, dependency patterns, and transaction tagging that every other
// package (repo, pkgdb, resolve, transaction, unpack) builds on.
// Grounded on the teacher's Package/PackageRelation/VersionConstraint
// (holo-build/common/package.go), generalized from a one-shot build
// description into the long-lived, mutable record a package manager
// keeps per installed package.
package model

// State is a package record's lifecycle stage (spec §3).
type State int

const (
	StateNotInstalled State = iota
	StateUnpacked
	StateInstalled
	StateBroken
	StateHalfRemoved
)

func (s State) String() string {
	switch s {
	case StateNotInstalled:
		return "not-installed"
	case StateUnpacked:
		return "unpacked"
	case StateInstalled:
		return "installed"
	case StateBroken:
		return "broken"
	case StateHalfRemoved:
		return "half-removed"
	default:
		return "unknown"
	}
}

// TransactionAction tags a package with the action a transaction will
// perform on it (spec §3, §4.8).
type TransactionAction int

const (
	ActionNone TransactionAction = iota
	ActionInstall
	ActionReinstall
	ActionUpdate
	ActionConfigure
	ActionRemove
	ActionHold
	ActionDownload
)

func (a TransactionAction) String() string {
	switch a {
	case ActionInstall:
		return "install"
	case ActionReinstall:
		return "reinstall"
	case ActionUpdate:
		return "update"
	case ActionConfigure:
		return "configure"
	case ActionRemove:
		return "remove"
	case ActionHold:
		return "hold"
	case ActionDownload:
		return "download"
	default:
		return "none"
	}
}

// FileEntry is a single member of Files/ConfFiles/Links/Dirs (spec §3:
// "ordered sequences of entries with file path and, for files, sha256;
// for links, target; for conf_files, sha256 of the pristine version").
type FileEntry struct {
	File   string `toml:"file"`
	SHA256 string `toml:"sha256,omitempty"`
	Target string `toml:"target,omitempty"`
}

// AlternativeSpec is one `linkpath:targetpath` entry in an alternatives
// group (spec §3, §4.10).
type AlternativeSpec struct {
	LinkPath   string `toml:"link"`
	TargetPath string `toml:"target"`
}

// AlternativeGroup is the value side of the pkgdb's reserved
// `_XBPS_ALTERNATIVES_` key: an ordered sequence of provider pkgnames,
// whose head is the provider currently active on disk (spec §3).
type AlternativeGroup struct {
	Providers []string `toml:"providers"`
}

// PackageRecord is the pkgd mapping of spec §3, keyed by Pkgname in
// the pkgdb store.
type PackageRecord struct {
	Pkgname      string `toml:"pkgname"`
	Pkgver       string `toml:"pkgver"`
	Architecture string `toml:"architecture"`

	InstalledSize  uint64 `toml:"installed_size"`
	FilenameSize   uint64 `toml:"filename-size"`
	FilenameSHA256 string `toml:"filename-sha256,omitempty"`

	RunDepends []string `toml:"run_depends"`
	Provides   []string `toml:"provides"`
	Replaces   []string `toml:"replaces"`
	Conflicts  []string `toml:"conflicts"`

	ShlibProvides []string `toml:"shlib-provides"`
	ShlibRequires []string `toml:"shlib-requires"`

	Alternatives map[string][]AlternativeSpec `toml:"alternatives"`

	Files     []FileEntry `toml:"files"`
	ConfFiles []FileEntry `toml:"conf_files"`
	Links     []FileEntry `toml:"links"`
	Dirs      []FileEntry `toml:"dirs"`

	State State `toml:"state"`

	AutomaticInstall bool `toml:"automatic-install"`
	Hold             bool `toml:"hold"`
	RepoLock         bool `toml:"repolock"`

	InstallScript []byte `toml:"install-script,omitempty"`
	RemoveScript  []byte `toml:"remove-script,omitempty"`
	InstallMsg    []byte `toml:"install-msg,omitempty"`
	RemoveMsg     []byte `toml:"remove-msg,omitempty"`

	InstallDate    string `toml:"install-date,omitempty"`
	MetafileSHA256 string `toml:"metafile-sha256,omitempty"`

	// Repository is not part of the on-disk pkgd, but tracks which
	// configured repository a transaction candidate came from, needed
	// by repolock (spec §4.7) and by the download phase (spec §4.11).
	Repository string `toml:"-"`
}

// Clone returns a deep-enough copy of pr suitable for a transaction's
// own package list entry (spec §3: "ordered sequence of pkgd copies
// annotated with a transaction action tag").
func (pr *PackageRecord) Clone() *PackageRecord {
	if pr == nil {
		return nil
	}
	clone := *pr
	clone.RunDepends = append([]string(nil), pr.RunDepends...)
	clone.Provides = append([]string(nil), pr.Provides...)
	clone.Replaces = append([]string(nil), pr.Replaces...)
	clone.Conflicts = append([]string(nil), pr.Conflicts...)
	clone.ShlibProvides = append([]string(nil), pr.ShlibProvides...)
	clone.ShlibRequires = append([]string(nil), pr.ShlibRequires...)
	clone.Files = append([]FileEntry(nil), pr.Files...)
	clone.ConfFiles = append([]FileEntry(nil), pr.ConfFiles...)
	clone.Links = append([]FileEntry(nil), pr.Links...)
	clone.Dirs = append([]FileEntry(nil), pr.Dirs...)
	if pr.Alternatives != nil {
		clone.Alternatives = make(map[string][]AlternativeSpec, len(pr.Alternatives))
		for k, v := range pr.Alternatives {
			clone.Alternatives[k] = append([]AlternativeSpec(nil), v...)
		}
	}
	return &clone
}
