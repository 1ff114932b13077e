package commands

import (
	"git.home.luguber.info/inful/texbuilder/internal/build"
	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/document"
)

// selectDocuments returns descriptors for explicit paths, or the configured
// documents when none are given.
func selectDocuments(cfg *config.Config, paths []string) ([]*document.Descriptor, error) {
	if len(paths) == 0 {
		return build.ResolveDocuments(cfg)
	}
	docs := make([]*document.Descriptor, 0, len(paths))
	for _, p := range paths {
		d, err := document.New(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}
