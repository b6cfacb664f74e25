package song

import (
	"fmt"
	"io/fs"
	"os"
)

func statFile(path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat song: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("stat song: %s is a directory", path)
	}
	return info, nil
}
