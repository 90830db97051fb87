package cache

// Keyer derives cache keys.
type Keyer interface {
	// PayloadKey keys an engine result by the hash of its spec and the
	// renderer options that affect it.
	PayloadKey(specHash string, opts PayloadKeyOpts) string

	// ArtifactKey keys a document assembled from a cached result.
	ArtifactKey(resultHash string, opts ArtifactKeyOpts) string
}

// PayloadKeyOpts are the renderer options a result depends on.
type PayloadKeyOpts struct {
	Width       float64  `json:"w,omitempty"`
	Height      float64  `json:"h,omitempty"`
	Palette     []string `json:"p,omitempty"`
	Bins        int      `json:"b,omitempty"`
	PanelSuffix bool     `json:"s,omitempty"`
	// Version separates entries written by incompatible engine versions.
	Version string `json:"v,omitempty"`
}

// ArtifactKeyOpts are the document options an artifact depends on.
type ArtifactKeyOpts struct {
	Format      string `json:"f"`
	Title       string `json:"t,omitempty"`
	Description string `json:"d,omitempty"`
}

// DefaultKeyer hashes key parts into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

func (DefaultKeyer) PayloadKey(specHash string, opts PayloadKeyOpts) string {
	return hashKey("payload", specHash, opts)
}

func (DefaultKeyer) ArtifactKey(resultHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", resultHash, opts)
}
