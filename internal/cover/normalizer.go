package cover

import "github.com/dunamismax/trackprep/internal/mediaerr"

type Result struct {
	Data     []byte
	Metadata Metadata
}

type Metadata struct {
	Width         int      `json:"width"`
	Height        int      `json:"height"`
	Format        string   `json:"format"`
	Quality       int      `json:"quality"`
	FileSizeBytes int      `json:"fileSizeBytes"`
	Original      Original `json:"original"`
}

type Original struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// Normalizer turns any decodable image into square cover art. It is safe
// for concurrent use.
type Normalizer struct {
	opts        Options
	transformer Transformer
}

func NewNormalizer(opts Options, transformer Transformer) *Normalizer {
	return &Normalizer{opts: opts, transformer: transformer}
}

// NewDefaultNormalizer uses the backend selected at build time.
func NewDefaultNormalizer(opts Options) *Normalizer {
	return NewNormalizer(opts, newTransformer())
}

// Backend names the transformer in use, or "none".
func (n *Normalizer) Backend() string {
	if n.transformer == nil {
		return "none"
	}
	return n.transformer.Name()
}

// Progressive reports whether output JPEGs are progressive.
func (n *Normalizer) Progressive() bool {
	return n.transformer != nil && n.transformer.Progressive()
}

func (n *Normalizer) Normalize(input []byte) (Result, error) {
	if n.transformer == nil {
		return Result{}, mediaerr.MissingCapability("image transformer")
	}
	if len(input) == 0 {
		return Result{}, mediaerr.InvalidImage("No image data provided")
	}

	out, err := n.transformer.Transform(input, n.opts)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Data: out.Data,
		Metadata: Metadata{
			Width:         out.Width,
			Height:        out.Height,
			Format:        OutputFormat,
			Quality:       JPEGQuality,
			FileSizeBytes: len(out.Data),
			Original: Original{
				Width:  out.OriginalWidth,
				Height: out.OriginalHeight,
				Format: out.OriginalFormat,
			},
		},
	}, nil
}
