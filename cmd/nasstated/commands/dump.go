package commands

import (
	"encoding/json"
	"io"
	"os"

	"git.home.luguber.info/inful/nasstate/internal/config"
	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/ingest"
	"git.home.luguber.info/inful/nasstate/internal/state"
	"git.home.luguber.info/inful/nasstate/internal/statefile"
)

// DumpCmd implements the 'dump' command.
type DumpCmd struct {
	Keys  []string `arg:"" optional:"" help:"State keys to dump (default: all file-backed keys)"`
	Typed bool     `help:"Print the typed form instead of the raw slice"`
}

func (d *DumpCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	root.applyLogging(g, cfg.Logging)
	return d.dump(os.Stdout, statefile.New(cfg.Paths.EmhttpDir, cfg.Paths.ConfigDir).WithLogger(g.Logger))
}

func (d *DumpCmd) dump(w io.Writer, loader *statefile.Loader) error {
	keys := state.FileKeys()
	if len(d.Keys) > 0 {
		keys = keys[:0:0]
		for _, raw := range d.Keys {
			k, ok := state.ParseKey(raw)
			if !ok {
				return ferrors.ValidationError("unknown state key").WithContext("key", raw).Build()
			}
			keys = append(keys, k)
		}
	}

	out := make(map[state.Key]any, len(keys))
	for _, k := range keys {
		s, err := loader.Load(k)
		if err != nil {
			return err
		}
		if d.Typed {
			out[k] = ingest.Project(k, s)
		} else {
			out[k] = s
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return ferrors.WrapError(err, ferrors.CategorySerialization, "encode state").Build()
	}
	return nil
}
