package repo

import (
	"archive/tar"
	"io"

	"github.com/voidpkg/xbps-go/errs"
)

// parseRepodataArchive reads the three named TOML members out of an
// "<arch>-repodata" tar archive (spec §4.3 step 2: index.toml,
// index-meta.toml, stage.toml — each independently optional).
func parseRepodataArchive(r io.Reader) (repodataMembers, error) {
	members := repodataMembers{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Invalid("repo: reading repodata archive: %v", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		blob, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		members[hdr.Name] = blob
	}
	return members, nil
}

// writeRepodataArchive serializes members back into a tar stream, the
// inverse of parseRepodataArchive, used by the rindex command.
func writeRepodataArchive(w io.Writer, members repodataMembers) error {
	tw := tar.NewWriter(w)
	names := []string{"index.toml", "index-meta.toml", "stage.toml"}
	for _, name := range names {
		blob, ok := members[name]
		if !ok {
			continue
		}
		hdr := &tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0644,
			Size:     int64(len(blob)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write(blob); err != nil {
			return err
		}
	}
	return tw.Close()
}
