// Package certificates lists the certificate images shown in the portfolio gallery.
package certificates

import (
	"context"
	"path"
	"sort"
	"strings"
)

// Certificate describes one gallery image.
type Certificate struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Type     string `json:"type"`
}

type Source interface {
	List(ctx context.Context) ([]Certificate, error)
}

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
}

// fromFilenames keeps JPEG files only and orders them by name.
func fromFilenames(names []string, urlPrefix string) []Certificate {
	prefix := strings.TrimRight(urlPrefix, "/")
	certificates := make([]Certificate, 0, len(names))
	for _, name := range names {
		extension := strings.ToLower(path.Ext(name))
		if _, ok := allowedExtensions[extension]; !ok {
			continue
		}
		certificates = append(certificates, Certificate{
			Filename: name,
			Path:     prefix + "/" + name,
			Type:     strings.TrimPrefix(extension, "."),
		})
	}
	sort.Slice(certificates, func(i, j int) bool {
		return certificates[i].Filename < certificates[j].Filename
	})
	return certificates
}
