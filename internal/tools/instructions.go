package tools

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bhandras/kubechat/shared/logger"
)

//go:embed instructions/*.md
var builtinInstructions embed.FS

// LoadInstructions reads every regular file in dir and keys its content by
// file name without extension. Sub-directories are skipped. An empty dir
// selects the built-in instructions.
func LoadInstructions(dir string) (map[string]string, error) {
	if dir == "" {
		sub, err := fs.Sub(builtinInstructions, "instructions")
		if err != nil {
			return nil, err
		}
		return loadFrom(sub, "builtin")
	}
	return loadFrom(os.DirFS(dir), dir)
}

func loadFrom(fsys fs.FS, label string) (map[string]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read tools dir %s: %w", label, err)
	}

	contents := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			logger.Warnf("[tools] skipping directory: %s", filepath.Join(label, entry.Name()))
			continue
		}
		data, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read tool file %s: %w", entry.Name(), err)
		}
		contents[trimExt(entry.Name())] = string(data)
	}
	return contents, nil
}

// trimExt drops the last extension: "kubectl.md" -> "kubectl",
// "a.b.txt" -> "a.b".
func trimExt(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}
