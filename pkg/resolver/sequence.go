package resolver

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// decodeSequence decodes every element concurrently, preserving input
// order in the result regardless of completion order. The first error
// cancels the shared errgroup context, which unblocks the other
// in-flight AssetResult.Wait calls early; it does not stop the
// background loads those waits were watching, which keep running and
// still populate the Loader's cache for subsequent resolutions.
func decodeSequence(ctx context.Context, infos []Info, loader Loader) (Decoded, error) {
	results := make([]Decoded, len(infos))

	g, gctx := errgroup.WithContext(ctx)
	for i, info := range infos {
		i, info := i, info
		g.Go(func() error {
			d, err := Decode(gctx, info, loader)
			if err != nil {
				return err
			}
			results[i] = d
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Decoded{}, err
	}

	return Decoded{Kind: KindSequence, Sequence: results}, nil
}
