package repo

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/voidpkg/xbps-go/crypto"
	"github.com/voidpkg/xbps-go/errs"
	"github.com/voidpkg/xbps-go/internal/xbpsutil"
	"github.com/voidpkg/xbps-go/model"
	"github.com/voidpkg/xbps-go/unpack"
)

// BuildIndex implements original_source/lib/rindex.c's scan step: read
// every "*.<arch>.xbps" archive in dir and assemble the {pkgname:
// record} map index.toml carries, with each record's filename-sha256/
// filename-size stamped from the archive file itself (spec §4.3 step
// 2, §4.11 step 2's verification counterpart).
func BuildIndex(dir, arch string) (map[string]*model.PackageRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	suffix := "." + arch + ".xbps"
	index := map[string]*model.PackageRecord{}
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), suffix) {
			continue
		}
		path := filepath.Join(dir, de.Name())
		rec, err := readArchiveRecord(path)
		if err != nil {
			return nil, errs.Invalid("repo: indexing %s: %v", path, err)
		}
		index[rec.Pkgname] = rec
	}
	return index, nil
}

func readArchiveRecord(path string) (*model.PackageRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	tr, err := unpack.Open(f)
	if err != nil {
		return nil, err
	}
	rec, err := unpack.ReadMetadata(tr)
	if err != nil {
		return nil, err
	}

	sha, err := xbpsutil.SHA256File(path)
	if err != nil {
		return nil, err
	}
	rec.FilenameSHA256 = sha
	rec.FilenameSize = uint64(info.Size())
	return rec, nil
}

// WriteRepodata serializes index into an "<arch>-repodata" archive
// under dir, the inverse of Open/parseRepodataArchive, signing it with
// signingKey when one is given (spec §4.3 step 2's index-meta.toml
// embedded public key). Returns the written archive's path.
func WriteRepodata(dir, arch string, index map[string]*model.PackageRecord, signingKey *crypto.SecretKey) (string, error) {
	var indexBuf bytes.Buffer
	doc := struct {
		Packages map[string]*model.PackageRecord `toml:"packages"`
	}{Packages: index}
	if err := toml.NewEncoder(&indexBuf).Encode(doc); err != nil {
		return "", err
	}
	members := repodataMembers{"index.toml": indexBuf.Bytes()}

	if signingKey != nil {
		pub := &crypto.PublicKey{PK: signingKey.PK, KeyNum: signingKey.KeyNum}
		meta := Metadata{PublicKey: pub.Encode(), PublicKeySize: len(pub.Encode()), SignedBy: pub.KeyNumHex()}
		var metaBuf bytes.Buffer
		if err := toml.NewEncoder(&metaBuf).Encode(meta); err != nil {
			return "", err
		}
		members["index-meta.toml"] = metaBuf.Bytes()
	}

	path := filepath.Join(dir, arch+"-repodata")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := writeRepodataArchive(f, members); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	if signingKey == nil {
		return path, nil
	}
	sig, err := crypto.Sign(signingKey, path, "signify/minisign signature", arch+"-repodata")
	if err != nil {
		return "", err
	}
	if err := xbpsutil.WriteAtomic(path+".sig", sig.Encode(), 0644); err != nil {
		return "", err
	}
	return path, nil
}
