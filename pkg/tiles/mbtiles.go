package tiles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver for MBTiles archives

	"github.com/paulmach/orb/maptile"
)

// MBTilesScheme prefixes tile URLs served from a local archive.
const MBTilesScheme = "mbtiles://"

const mbtilesSchema = `
BEGIN TRANSACTION;
CREATE TABLE IF NOT EXISTS tiles (
	zoom_level INT NOT NULL,
	tile_column INT NOT NULL,
	tile_row INT NOT NULL,
	tile_data BLOB NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS tiles_index ON tiles (zoom_level, tile_column, tile_row);
CREATE TABLE IF NOT EXISTS metadata (
	name TEXT,
	value TEXT
);
COMMIT;
`

// MBTiles is a tile archive in the MBTiles 1.3 layout.
// Rows are stored in TMS order; the flip to XYZ happens here so callers
// always address tiles with XYZ coordinates.
type MBTiles struct {
	db   *sql.DB
	path string
}

// ErrInvalidArchivePath is returned for archive paths that would change
// the SQLite connection string.
var ErrInvalidArchivePath = errors.New("archive path must not contain '?' or '#'")

func checkArchivePath(path string) error {
	if path == "" || strings.ContainsAny(path, "?#") {
		return fmt.Errorf("%w: %q", ErrInvalidArchivePath, path)
	}
	return nil
}

// OpenMBTiles opens an existing archive read-only.
func OpenMBTiles(path string) (*MBTiles, error) {
	if err := checkArchivePath(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("open mbtiles %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open mbtiles %s: %w", path, err)
	}
	return &MBTiles{db: db, path: path}, nil
}

// CreateMBTiles creates (or opens for writing) an archive and stores meta
// in its metadata table.
func CreateMBTiles(path string, meta map[string]string) (*MBTiles, error) {
	if err := checkArchivePath(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=MEMORY&_synchronous=OFF", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("create mbtiles %s: %w", path, err)
	}
	if _, err := db.Exec(mbtilesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create mbtiles schema: %w", err)
	}
	for k, v := range meta {
		if _, err := db.Exec("DELETE FROM metadata WHERE name = ?", k); err != nil {
			db.Close()
			return nil, err
		}
		if _, err := db.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", k, v); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &MBTiles{db: db, path: path}, nil
}

// Path returns the archive location on disk.
func (m *MBTiles) Path() string { return m.path }

// Tile returns the tile at XYZ coordinates.
func (m *MBTiles) Tile(ctx context.Context, t maptile.Tile) ([]byte, error) {
	var data []byte
	err := m.db.QueryRowContext(ctx,
		"SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?",
		t.Z, t.X, flipY(t)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
	}
	return data, nil
}

// PutTile writes a tile at XYZ coordinates, replacing any existing one.
func (m *MBTiles) PutTile(ctx context.Context, t maptile.Tile, data []byte) error {
	_, err := m.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)",
		t.Z, t.X, flipY(t), data)
	return err
}

// Metadata returns the name/value pairs of the metadata table.
func (m *MBTiles) Metadata(ctx context.Context) (map[string]string, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT name, value FROM metadata")
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// TileJSON describes the archive as a TileJSON document whose tile
// template points back into the archive.
func (m *MBTiles) TileJSON(ctx context.Context) (*TileJSON, error) {
	meta, err := m.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	tj := &TileJSON{
		TileJSON:    "3.0.0",
		Name:        meta["name"],
		Attribution: meta["attribution"],
		Tiles:       []string{MBTilesScheme + m.path + "/{z}/{x}/{y}"},
		Scheme:      "xyz",
	}
	if v, err := strconv.Atoi(meta["minzoom"]); err == nil {
		tj.MinZoom = &v
	}
	if v, err := strconv.Atoi(meta["maxzoom"]); err == nil {
		tj.MaxZoom = &v
	}
	if b := parseFloats(meta["bounds"]); len(b) == 4 {
		tj.Bounds = b
	}
	return tj, nil
}

// Fetch implements [Fetcher] for URLs produced by [MBTiles.TileJSON].
// A URL naming only the archive returns its TileJSON.
func (m *MBTiles) Fetch(ctx context.Context, req Request) ([]byte, error) {
	_, tile, ok := parseMBTilesURL(req.URL)
	if !ok {
		tj, err := m.TileJSON(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(tj)
	}
	return m.Tile(ctx, tile)
}

// Close closes the database.
func (m *MBTiles) Close() error {
	return m.db.Close()
}

func flipY(t maptile.Tile) uint32 {
	return (1 << uint32(t.Z)) - 1 - t.Y
}

// parseMBTilesURL splits mbtiles://<path>/<z>/<x>/<y> into the archive path
// and tile. ok is false when the URL names only the archive.
func parseMBTilesURL(rawURL string) (path string, t maptile.Tile, ok bool) {
	rest := strings.TrimPrefix(rawURL, MBTilesScheme)
	parts := strings.Split(rest, "/")
	if len(parts) < 4 {
		return rest, maptile.Tile{}, false
	}
	n := len(parts)
	z, errZ := strconv.ParseUint(parts[n-3], 10, 32)
	x, errX := strconv.ParseUint(parts[n-2], 10, 32)
	y, errY := strconv.ParseUint(parts[n-1], 10, 32)
	if errZ != nil || errX != nil || errY != nil {
		return rest, maptile.Tile{}, false
	}
	return strings.Join(parts[:n-3], "/"), maptile.Tile{X: uint32(x), Y: uint32(y), Z: maptile.Zoom(z)}, true
}

func parseFloats(s string) []float64 {
	if s == "" {
		return nil
	}
	fields := strings.Split(s, ",")
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}
