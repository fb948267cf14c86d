package sandbox

import (
	"os"
	"path/filepath"

	appErr "codebattle/pkg/errors"
)

// workspace is the ephemeral per-invocation working context: data/ holds the
// map exchanged with the judge, players/ holds the harness-wrapped sources.
// Removal is guaranteed on all exit paths via Cleanup.
type workspace struct {
	root       string
	dataDir    string
	playersDir string
}

// newWorkspace creates <workRoot>/<id> with data/ and players/ subdirs.
func newWorkspace(workRoot, id string) (*workspace, error) {
	root := filepath.Join(workRoot, id)
	ws := &workspace{
		root:       root,
		dataDir:    filepath.Join(root, "data"),
		playersDir: filepath.Join(root, "players"),
	}
	for _, dir := range []string{ws.dataDir, ws.playersDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			ws.Cleanup()
			return nil, appErr.Wrapf(err, appErr.WorkspaceFailed, "create workspace dir %s failed", dir)
		}
	}
	return ws, nil
}

// WriteMap stores the match map where the judge's run phase reads it.
func (w *workspace) WriteMap(mapJSON string) error {
	path := filepath.Join(w.dataDir, "map.json")
	if err := os.WriteFile(path, []byte(mapJSON), 0o644); err != nil {
		return appErr.Wrapf(err, appErr.WorkspaceFailed, "write map file failed")
	}
	return nil
}

// WritePlayerSource stores one player's harness-wrapped source under
// players/<role>/<file>.
func (w *workspace) WritePlayerSource(role, filename, fullSource string) error {
	dir := filepath.Join(w.playersDir, role)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return appErr.Wrapf(err, appErr.WorkspaceFailed, "create player dir failed")
	}
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(fullSource), 0o644); err != nil {
		return appErr.Wrapf(err, appErr.WorkspaceFailed, "write player source failed")
	}
	return nil
}

// Cleanup removes the whole workspace tree.
func (w *workspace) Cleanup() {
	_ = os.RemoveAll(w.root)
}
