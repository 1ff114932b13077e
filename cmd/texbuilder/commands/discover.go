package commands

import (
	"fmt"

	"git.home.luguber.info/inful/texbuilder/internal/build"
)

// DiscoverCmd implements the 'discover' command.
type DiscoverCmd struct{}

func (d *DiscoverCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, g)
	if err != nil {
		return err
	}
	docs, err := build.ResolveDocuments(cfg)
	if err != nil {
		return err
	}
	out := root.Stdout()
	for _, doc := range docs {
		_, _ = fmt.Fprintln(out, doc.Tex())
	}
	g.Logger.Info("Discovery complete", "documents", len(docs))
	return nil
}
