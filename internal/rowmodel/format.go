package rowmodel

import (
	"fmt"
	"path"
	"strings"

	"jvanrhyn.dev/remotetree/internal/filemeta"
)

func cellText(title string, rec filemeta.Record) string {
	switch title {
	case "Name":
		return rec.Name
	case "Size":
		if rec.IsDir() {
			return "-"
		}
		return HumanBytes(rec.Size)
	case "Type":
		return rec.Kind.String()
	case "Modified":
		if rec.Updated.IsZero() {
			return ""
		}
		return rec.Updated.Format("2006-01-02 15:04")
	case "Path":
		return rec.FullPath
	}
	return ""
}

// HumanBytes renders b with a binary unit suffix.
func HumanBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	d := float64(b)
	u := []string{"KB", "MB", "GB", "TB", "PB"}
	for i := 0; i < len(u); i++ {
		d /= unit
		if d < unit {
			return fmt.Sprintf("%.1f %s", d, u[i])
		}
	}
	return fmt.Sprintf("%.1f %s", d/unit, "EB")
}

var fileIcons = map[string]string{
	"folder":  "📁",
	".pdf":    "📄",
	".xls":    "📊",
	".xlsx":   "📊",
	".csv":    "📑",
	".txt":    "📄",
	".go":     "🟦",
	".md":     "📝",
	".png":    "🖼️",
	".jpg":    "🖼️",
	".zip":    "📦",
	"default": "📄",
}

// IconFor picks a display icon for an entry.
func IconFor(name string, isDir bool) string {
	if isDir {
		return fileIcons["folder"]
	}
	if ext := strings.ToLower(path.Ext(name)); ext != "" {
		if ic, ok := fileIcons[ext]; ok {
			return ic
		}
	}
	return fileIcons["default"]
}
