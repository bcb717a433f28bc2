package cache

// Keyer derives cache keys for each kind of cached payload.
type Keyer interface {
	// URLKey identifies a fetched resource (style, TileJSON or tile).
	// Headers take part in the key because they can change the response.
	URLKey(url string, headers map[string]string) string

	// ArtifactKey identifies an encoded export.
	ArtifactKey(snapshotHash string, opts ArtifactKeyOpts) string
}

// ArtifactKeyOpts are the export parameters that change the output bytes.
type ArtifactKeyOpts struct {
	Format   string  `json:"format"`
	WidthMM  float64 `json:"width_mm"`
	HeightMM float64 `json:"height_mm"`
	DPI      int     `json:"dpi"`
}

// DefaultKeyer is the standard [Keyer].
// URLs are hashed so credentials in query strings never appear in keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// URLKey returns "url:<hash>".
func (DefaultKeyer) URLKey(url string, headers map[string]string) string {
	if len(headers) == 0 {
		return hashKey("url", url)
	}
	return hashKey("url", url, headers)
}

// ArtifactKey returns "artifact:<hash of snapshot and options>".
func (DefaultKeyer) ArtifactKey(snapshotHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", snapshotHash, opts)
}
