package filestore

import "fmt"

// Layout decides how an id maps to a file below the root directory.
type Layout string

const (
	// LayoutRaw uses the id itself as the relative file path.
	LayoutRaw Layout = "raw"
	// LayoutHashed names the file after the blake3 digest of the id, sharded
	// over two directory levels.
	LayoutHashed Layout = "hashed"
)

const (
	backendName = "file"
	shardLevels = 2
	filePerm    = 0644
)

func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case LayoutRaw, "":
		return LayoutRaw, nil
	case LayoutHashed:
		return LayoutHashed, nil
	default:
		return "", fmt.Errorf("unknown file layout %q", s)
	}
}
