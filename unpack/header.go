package unpack

import (
	"archive/tar"
	"io"

	"github.com/BurntSushi/toml"

	"github.com/voidpkg/xbps-go/errs"
	"github.com/voidpkg/xbps-go/model"
)

// header is the parsed result of spec §4.9's "Preparation" step 1: the
// four required/optional leading archive members.
type header struct {
	InstallScript []byte
	RemoveScript  []byte
	Props         *model.PackageRecord
	Files         *model.PackageRecord
}

// filesDoc mirrors the subset of PackageRecord that files.plist carries
// on its own (spec §3: files/conf_files/links/dirs are a separate
// dictionary from props, merged by the caller once both are read).
type filesDoc struct {
	Files     []model.FileEntry `toml:"files"`
	ConfFiles []model.FileEntry `toml:"conf_files"`
	Links     []model.FileEntry `toml:"links"`
	Dirs      []model.FileEntry `toml:"dirs"`
}

// ReadMetadata parses just an archive's header members — no payload
// extraction — merging props.plist and files.plist into a single
// record. This is the single-archive inspection rindex needs to build
// a repository index from a directory of built packages, without the
// rootdir/extraction machinery Engine.Unpack requires.
func ReadMetadata(tr *tar.Reader) (*model.PackageRecord, error) {
	h, err := readHeader(tr)
	if err != nil {
		return nil, err
	}
	props := h.Props
	props.InstallScript = h.InstallScript
	props.RemoveScript = h.RemoveScript
	props.Files = h.Files.Files
	props.ConfFiles = h.Files.ConfFiles
	props.Links = h.Files.Links
	props.Dirs = h.Files.Dirs
	return props, nil
}

// readHeader extracts ./INSTALL, ./REMOVE, ./props.plist and
// ./files.plist in order, per spec §4.9. It leaves tr positioned at the
// first payload member once both plists have been seen. Missing props
// or files is ENODEV, matching the spec's explicit errno.
func readHeader(tr *tar.Reader) (*header, error) {
	h := &header{Props: &model.PackageRecord{}, Files: &model.PackageRecord{}}
	var sawProps, sawFiles bool

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch hdr.Name {
		case "./INSTALL":
			h.InstallScript, err = io.ReadAll(tr)
			if err != nil {
				return nil, err
			}
			continue
		case "./REMOVE":
			h.RemoveScript, err = io.ReadAll(tr)
			if err != nil {
				return nil, err
			}
			continue
		case "./props.plist":
			if _, err := toml.NewDecoder(tr).Decode(h.Props); err != nil {
				return nil, errs.Invalid("unpack: props.plist: %v", err)
			}
			sawProps = true
			continue
		case "./files.plist":
			var doc filesDoc
			if _, err := toml.NewDecoder(tr).Decode(&doc); err != nil {
				return nil, errs.Invalid("unpack: files.plist: %v", err)
			}
			h.Files.Files = doc.Files
			h.Files.ConfFiles = doc.ConfFiles
			h.Files.Links = doc.Links
			h.Files.Dirs = doc.Dirs
			sawFiles = true
		}

		if sawProps && sawFiles {
			return h, nil
		}
	}

	if !sawProps || !sawFiles {
		return nil, errs.NoDevice("unpack: archive missing required props.plist/files.plist member")
	}
	return h, nil
}
