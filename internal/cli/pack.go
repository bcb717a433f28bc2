package cli

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mapexport/pkg/mapstyle"
	"github.com/matzehuels/mapexport/pkg/pipeline"
	"github.com/matzehuels/mapexport/pkg/tiles"
)

// packCommand creates the pack command.
func (c *CLI) packCommand() *cobra.Command {
	var (
		source      string
		bbox        string
		minZoom     int
		maxZoom     int
		output      string
		token       string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "pack STYLE",
		Short: "Download a raster source of a style into an MBTiles archive",
		Long: `Download the tiles of one raster source into an MBTiles archive.

Point the source's "tiles" at mbtiles://<path>/{z}/{x}/{y} to export
without network access. Tiles the server does not have are skipped.`,
		Example: `  mapexport pack style.json --source satellite \
    --bbox 13.08,52.33,13.76,52.68 --minzoom 8 --maxzoom 14 -o berlin.mbtiles`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			bound, err := parseBBox(bbox)
			if err != nil {
				return err
			}
			if minZoom < 0 || maxZoom > mapstyle.MaxZoom || minZoom > maxZoom {
				return fmt.Errorf("invalid zoom range %d-%d", minZoom, maxZoom)
			}

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			runner, err := c.newRunner(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer runner.Close()

			style, err := runner.LoadStyle(ctx, pipeline.Options{StyleURL: args[0], Credential: token})
			if err != nil {
				return err
			}
			id, src, err := pickRasterSource(style, source)
			if err != nil {
				return err
			}

			if output == "" {
				output = id + ".mbtiles"
			}
			opts := tiles.PackOptions{
				Bound:       bound,
				MinZoom:     maptile.Zoom(minZoom),
				MaxZoom:     maptile.Zoom(maxZoom),
				Concurrency: concurrency,
				Transform:   tiles.WithCredential(nil, token),
				Logger:      c.Logger,
			}
			dst, err := tiles.CreateMBTiles(output, tiles.PackMetadata(id, src, opts))
			if err != nil {
				return err
			}
			defer dst.Close()

			prog := newProgress(c.Logger)
			spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Packing %s (z%d-%d)...", id, minZoom, maxZoom))
			spinner.Start()
			stats, err := tiles.Pack(ctx, runner.Fetcher, src, dst, opts)
			if err != nil {
				spinner.StopWithError("Packing failed")
				return err
			}
			spinner.Stop()
			prog.done(fmt.Sprintf("Packed %d tiles", stats.Tiles))

			printSuccess("Packed %d tiles from %s", stats.Tiles, id)
			printFile(output)
			printDetail("%s · %d missing", formatBytes(int(stats.Bytes)), stats.Missing)
			abs, err := filepath.Abs(output)
			if err == nil {
				printNextStep("Use it as a tile source", tiles.MBTilesScheme+abs+"/{z}/{x}/{y}")
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&source, "source", "", "raster source id (default: the only raster source)")
	flags.StringVar(&bbox, "bbox", "", "area as minlng,minlat,maxlng,maxlat (default: source bounds)")
	flags.IntVar(&minZoom, "minzoom", 0, "lowest zoom level to pack")
	flags.IntVar(&maxZoom, "maxzoom", 6, "highest zoom level to pack")
	flags.StringVarP(&output, "output", "o", "", "archive path (default <source>.mbtiles)")
	flags.StringVar(&token, "token", "", "access token appended to style and tile requests")
	flags.IntVar(&concurrency, "concurrency", tiles.DefaultPackConcurrency, "tiles fetched at once")

	return cmd
}

// pickRasterSource returns the raster source named id, or the only raster
// source of style when id is empty.
func pickRasterSource(style *mapstyle.Style, id string) (string, mapstyle.Source, error) {
	if id != "" {
		src, ok := style.Sources[id]
		if !ok {
			return "", nil, fmt.Errorf("style has no source %q", id)
		}
		if src.Type() != "raster" {
			return "", nil, fmt.Errorf("source %q is %s, only raster sources can be packed", id, src.Type())
		}
		return id, src, nil
	}

	var raster []string
	for name, src := range style.Sources {
		if src.Type() == "raster" {
			raster = append(raster, name)
		}
	}
	slices.Sort(raster)
	switch len(raster) {
	case 0:
		return "", nil, fmt.Errorf("style has no raster source")
	case 1:
		return raster[0], style.Sources[raster[0]], nil
	}
	return "", nil, fmt.Errorf("style has several raster sources, choose one with --source: %s", strings.Join(raster, ", "))
}

// parseBBox parses "minlng,minlat,maxlng,maxlat". An empty string is the
// empty bound.
func parseBBox(s string) (orb.Bound, error) {
	if s == "" {
		return orb.Bound{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox must be minlng,minlat,maxlng,maxlat: %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("invalid bbox %q: %w", s, err)
		}
		v[i] = f
	}
	if v[0] >= v[2] || v[1] >= v[3] {
		return orb.Bound{}, fmt.Errorf("bbox min must be below max: %q", s)
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}
