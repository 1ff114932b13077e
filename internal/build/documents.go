package build

import (
	"fmt"
	"path/filepath"
	"regexp"

	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/document"
)

// ResolveDocuments returns the documents named by documents.include, or the
// main files discovered under documents.root when include is empty.
func ResolveDocuments(cfg *config.Config) ([]*document.Descriptor, error) {
	root := cfg.Resolve(cfg.Documents.Root)
	if len(cfg.Documents.Include) > 0 {
		docs := make([]*document.Descriptor, 0, len(cfg.Documents.Include))
		for _, inc := range cfg.Documents.Include {
			p := inc
			if !filepath.IsAbs(p) {
				p = filepath.Join(root, inc)
			}
			d, err := document.New(p)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
			}
			docs = append(docs, d)
		}
		return docs, nil
	}
	pattern, err := regexp.Compile(cfg.Documents.MainPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: main pattern: %w", ErrDiscovery, err)
	}
	docs, err := document.Discover(root, pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	return docs, nil
}
