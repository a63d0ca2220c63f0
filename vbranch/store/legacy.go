package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/antgroup/zeta-workspace/vbranch/verrors"
)

// legacyDir holds one TOML file per branch id, the pre-consolidation layout
// spec.md §4.D still has to read for migration.
const legacyDir = "branches"

type legacyBranchRecord = branchRecord

// migrateLegacy reads every file under <dir>/branches/<id>.toml, folds them
// into a consolidated state, writes it out, and deletes the legacy files —
// the same read-old/write-new/delete-old sequence the teacher's own
// modules/zeta/refs/filesystem.go used when compacting loose refs into
// packed-refs. Returns (nil, nil) if no legacy directory exists.
func (s *Store) migrateLegacy() (*state, error) {
	dir := filepath.Join(s.dir, legacyDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, verrors.NewErrIo(err.Error())
	}

	st := &state{Version: currentVersion, Branches: map[string]branchRecord{}}
	var migrated []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		idHex := strings.TrimSuffix(e.Name(), ".toml")
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, verrors.NewErrIo(err.Error())
		}
		var rec legacyBranchRecord
		if _, err := toml.Decode(string(data), &rec); err != nil {
			return nil, verrors.NewErrIo(err.Error())
		}
		st.Branches[idHex] = rec
		migrated = append(migrated, path)
	}
	if len(migrated) == 0 {
		return nil, nil
	}
	if err := s.atomicWrite(st); err != nil {
		return nil, err
	}
	for _, path := range migrated {
		_ = os.Remove(path)
	}
	return st, nil
}
