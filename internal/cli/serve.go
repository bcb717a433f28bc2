package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mapexport/internal/server"
	"github.com/matzehuels/mapexport/pkg/tiles"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr          string
		engine        string
		maxConcurrent int
		noCache       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP export service",
		Long: `Serve map exports over HTTP.

POST /v1/exports renders the JSON request body and answers with map.<ext>
as an attachment, or as JSON with a data URI when ?inline=1 is set.
GET /v1/page-sizes lists paper presets, formats and resolutions.

Style URLs must be http(s); the service never reads local files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if engine != "" {
				cfg.Engine.Kind = strings.ToLower(engine)
			}
			if maxConcurrent > 0 {
				cfg.Server.MaxConcurrent = maxConcurrent
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			runner, err := c.newRunner(ctx, cfg, noCache)
			if err != nil {
				return err
			}
			defer runner.Close()
			runner.AllowLocalStyles = false
			if router, ok := runner.Fetcher.(*tiles.Router); ok {
				router.SetLocal(false)
			}

			printInfo("Serving map exports")
			printKeyValue("Address", StyleLink.Render(serviceURL(cfg.Server.Addr)))
			printKeyValue("Engine", cfg.Engine.Kind)
			printKeyValue("Concurrent", StyleNumber.Render(strconv.Itoa(cfg.Server.MaxConcurrent)))
			printKeyValue("Cache", cfg.Cache.Backend)

			return server.New(runner, cfg.Server, c.Logger).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().StringVar(&engine, "engine", "", "renderer: raster or chromium")
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "exports rendered at once before answering 429")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the tile and export cache")

	return cmd
}

// serviceURL turns a listen address into a URL for display.
func serviceURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}
