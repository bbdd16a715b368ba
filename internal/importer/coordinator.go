package importer

import (
	"context"
	"time"
)

// ImportAll imports each site sequentially in the order given. A failing
// site never stops the run; its failures are recorded in the report and the
// next site proceeds. Sequential on purpose: a single analytical store is
// the bottleneck, and interleaved bulk loads thrash it.
func (im *Importer) ImportAll(ctx context.Context, sites []string) Report {
	var rep Report

	start := time.Now()
	for _, site := range sites {
		if ctx.Err() != nil {
			break
		}
		rep.Sites = append(rep.Sites, im.ImportSite(ctx, site))
	}
	im.logf("run done sites=%d failed=%t duration=%s", len(rep.Sites), rep.Failed(), time.Since(start).Round(time.Millisecond))
	return rep
}
