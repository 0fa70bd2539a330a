// Package laspack reads and writes LAS point-cloud files and their
// compressed variant.
//
// Point data streams through pluggable codec backends selected by
// availability probing (see the laz package); full-waveform sample data in
// a sibling .wdp file resolves through the deduplicating waveform engine
// (see the waveform package). The facades here compose the two: Open,
// Create and OpenAppender cover the plain point stream, OpenFullWaveform
// joins it with the auxiliary waveform file.
package laspack

import (
	"strings"

	"github.com/arloliu/laspack/internal/options"
	"github.com/arloliu/laspack/laz"
)

// WaveformExt is the extension of the auxiliary waveform data file.
const WaveformExt = ".wdp"

// WaveformPath returns the sibling waveform data path for a LAS file path,
// replacing its extension.
func WaveformPath(lasPath string) string {
	if i := strings.LastIndexByte(lasPath, '.'); i > strings.LastIndexByte(lasPath, '/') {
		return lasPath[:i] + WaveformExt
	}

	return lasPath + WaveformExt
}

type config struct {
	backends  []laz.Backend
	selection laz.DecompressionSelection
}

func newConfig(opts []Option) (*config, error) {
	cfg := &config{selection: laz.AllFields()}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Option configures the file facades.
type Option = options.Option[*config]

// WithBackends sets the ordered codec candidate list. The first available
// candidate wins; an empty list means the default candidates.
func WithBackends(backends ...laz.Backend) Option {
	return options.NoError(func(cfg *config) {
		cfg.backends = backends
	})
}

// WithSelection restricts which point field groups readers decode. It only
// affects extended point formats in 1.4 files; elsewhere it is ignored.
func WithSelection(selection laz.DecompressionSelection) Option {
	return options.NoError(func(cfg *config) {
		cfg.selection = selection
	})
}
