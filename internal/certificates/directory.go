package certificates

import (
	"context"
	"fmt"
	"os"
)

// DirectorySource reads certificate images from a local directory.
type DirectorySource struct {
	dir       string
	urlPrefix string
}

var _ Source = (*DirectorySource)(nil)

func NewDirectorySource(dir, urlPrefix string) *DirectorySource {
	return &DirectorySource{dir: dir, urlPrefix: urlPrefix}
}

func (s *DirectorySource) List(_ context.Context) ([]Certificate, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("certificates: read %s: %w", s.dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	return fromFilenames(names, s.urlPrefix), nil
}
