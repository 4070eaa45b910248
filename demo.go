package main

import (
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

var demoFiles = map[string]string{
	"/README.md":              "# Demo store\n\nBrowse with the arrow keys.\n",
	"/docs/guide.md":          "Open a directory with Enter, close it with the left arrow.\n",
	"/docs/notes.txt":         "r refreshes the selection, R reloads a directory from scratch.\n",
	"/data/results.csv":       "run,value\n1,0.5\n2,0.75\n",
	"/data/archive/2023.zip":  "PK\x03\x04",
	"/src/main.go":            "package main\n\nfunc main() {}\n",
	"/src/internal/.keep":     "",
	"/images/logo.png":        "\x89PNG\r\n",
	"/reports/q1/summary.pdf": "%PDF-1.4\n",
}

// seedDemo fills fs with a small sample tree for the memory backend.
func seedDemo(fs billy.Filesystem) error {
	if err := fs.MkdirAll("/empty", 0o755); err != nil {
		return err
	}
	for p, content := range demoFiles {
		if err := fs.MkdirAll(path.Dir(p), 0o755); err != nil {
			return err
		}
		if err := util.WriteFile(fs, p, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}
