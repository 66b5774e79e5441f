package app

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"relaybot/internal/storage"
	logx "relaybot/pkg/logx"
)

func (a *App) openState() (storage.Store, error) {
	sc, err := mapStorage(a.Config())
	if err != nil {
		return nil, err
	}
	return storage.Open(sc, a.log.With(logx.String("comp", "storage")))
}

// ShowState prints every checkpoint as "source<TAB>message_id".
func (a *App) ShowState(ctx context.Context, out io.Writer) error {
	st, err := a.openState()
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := st.Load(ctx)
	if err != nil {
		return err
	}
	if len(p) == 0 {
		fmt.Fprintln(out, "no checkpoints")
		return nil
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tLAST ID")
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%d\n", k, p[k])
	}
	return tw.Flush()
}

// ResetState drops the checkpoints of sources, or all of them when none are
// given. Reset sources are re-read from the beginning on the next run.
func (a *App) ResetState(ctx context.Context, sources []string) (int, error) {
	st, err := a.openState()
	if err != nil {
		return 0, err
	}
	defer st.Close()

	p, err := st.Load(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	if len(sources) == 0 {
		removed = len(p)
		p = storage.Progress{}
	} else {
		for _, s := range sources {
			s = strings.TrimSpace(s)
			if _, ok := p[s]; ok {
				delete(p, s)
				removed++
			}
		}
	}
	if err := st.Save(ctx, p); err != nil {
		return 0, err
	}
	a.log.Info("checkpoints reset", logx.Int("removed", removed))
	return removed, nil
}
