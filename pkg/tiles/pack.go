package tiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/mapexport/pkg/mapstyle"
)

// DefaultPackConcurrency is the number of tiles fetched at once by [Pack].
const DefaultPackConcurrency = 16

// PackOptions controls [Pack].
type PackOptions struct {
	// Bound limits the packed area; empty means the source bounds.
	Bound   orb.Bound
	MinZoom maptile.Zoom
	MaxZoom maptile.Zoom

	Concurrency int
	Transform   RequestTransform
	Logger      *log.Logger
}

// PackStats summarizes a [Pack] run.
type PackStats struct {
	Tiles   int
	Missing int
	Bytes   int64
}

type packedTile struct {
	tile maptile.Tile
	data []byte
}

// Pack downloads the tiles of a raster source covering opts.Bound and
// writes them into dst, so exports can run offline against an mbtiles://
// source. Tiles the server does not have are counted and skipped.
//
// Fetches run concurrently; all writes happen on a single goroutine.
func Pack(ctx context.Context, f Fetcher, src mapstyle.Source, dst *MBTiles, opts PackOptions) (PackStats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	n := opts.Concurrency
	if n <= 0 {
		n = DefaultPackConcurrency
	}

	resolved, err := ResolveSource(ctx, src, f, opts.Transform)
	if err != nil {
		return PackStats{}, err
	}
	templates := resolved.Tiles()
	if len(templates) == 0 {
		return PackStats{}, errors.New("pack: source lists no tiles")
	}
	bound := opts.Bound
	if bound.IsZero() {
		bound = resolved.Bounds()
	}
	minZ := max(opts.MinZoom, maptile.Zoom(resolved.MinZoom()))
	maxZ := min(opts.MaxZoom, maptile.Zoom(resolved.MaxZoom()))
	if minZ > maxZ {
		return PackStats{}, fmt.Errorf("pack: zoom range %d-%d outside source range %d-%d",
			opts.MinZoom, opts.MaxZoom, resolved.MinZoom(), resolved.MaxZoom())
	}
	expand := ExpandOptions{Scheme: resolved.Scheme()}

	g, gctx := errgroup.WithContext(ctx)
	results := make(chan packedTile, n)

	g.Go(func() error {
		defer close(results)
		fetch, fctx := errgroup.WithContext(gctx)
		fetch.SetLimit(n)
	zooms:
		for z := minZ; z <= maxZ; z++ {
			set := Cover(bound, z)
			logger.Debug("packing zoom", "z", z, "tiles", len(set))
			for t := range set {
				if fctx.Err() != nil {
					break zooms
				}
				if !Intersect(t.Bound(), resolved.Bounds()) {
					continue
				}
				fetch.Go(func() error {
					url := Expand(templates[int(t.X+t.Y)%len(templates)], t, expand)
					data, err := f.Fetch(fctx, opts.Transform.Apply(url, KindTile))
					if errors.Is(err, ErrNotFound) {
						data, err = nil, nil
					}
					if err != nil {
						return fmt.Errorf("fetch tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
					}
					select {
					case results <- packedTile{tile: t, data: data}:
						return nil
					case <-fctx.Done():
						return fctx.Err()
					}
				})
			}
		}
		return fetch.Wait()
	})

	var stats PackStats
	g.Go(func() error {
		for r := range results {
			if len(r.data) == 0 {
				stats.Missing++
				continue
			}
			if err := dst.PutTile(gctx, r.tile, r.data); err != nil {
				return fmt.Errorf("write tile %d/%d/%d: %w", r.tile.Z, r.tile.X, r.tile.Y, err)
			}
			stats.Tiles++
			stats.Bytes += int64(len(r.data))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return stats, err
	}
	logger.Info("packed tiles", "tiles", stats.Tiles, "missing", stats.Missing, "bytes", stats.Bytes)
	return stats, nil
}

// PackMetadata returns the metadata rows describing a packed source.
func PackMetadata(name string, src mapstyle.Source, opts PackOptions) map[string]string {
	bound := opts.Bound
	if bound.IsZero() {
		bound = src.Bounds()
	}
	format := "png"
	if tiles := src.Tiles(); len(tiles) > 0 {
		ext := strings.TrimPrefix(path.Ext(strings.SplitN(tiles[0], "?", 2)[0]), ".")
		switch ext {
		case "jpg", "jpeg", "webp", "png":
			format = ext
		}
	}
	meta := map[string]string{
		"name":    name,
		"type":    "baselayer",
		"format":  format,
		"minzoom": strconv.Itoa(int(opts.MinZoom)),
		"maxzoom": strconv.Itoa(int(opts.MaxZoom)),
		"bounds": fmt.Sprintf("%s,%s,%s,%s",
			formatDegrees(bound.Min.Lon()), formatDegrees(bound.Min.Lat()),
			formatDegrees(bound.Max.Lon()), formatDegrees(bound.Max.Lat())),
	}
	if a, ok := src["attribution"].(string); ok && a != "" {
		meta["attribution"] = a
	}
	return meta
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
