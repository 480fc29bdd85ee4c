package playback

import (
	"context"
	"image"

	"github.com/justapithecus/petframes/framestore"
	"github.com/justapithecus/petframes/index"
	"github.com/justapithecus/petframes/log"
	"github.com/justapithecus/petframes/metrics"
)

// FrameLoader builds the frame buffer of one clip.
type FrameLoader interface {
	Load(ctx context.Context, characterType, phase, clip string) ([]image.Image, error)
}

// Loader reads a clip's frames in index order from the frame store.
//
// Frames whose file is missing or does not decode are skipped with a warning;
// the order of the remaining frames is preserved. An index error is returned
// as is and yields no frames.
type Loader struct {
	index   index.Index
	frames  *framestore.Store
	logger  *log.Logger
	metrics *metrics.Collector
}

// NewLoader creates a Loader. logger and collector may be nil.
func NewLoader(idx index.Index, frames *framestore.Store, logger *log.Logger, collector *metrics.Collector) *Loader {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Loader{index: idx, frames: frames, logger: logger, metrics: collector}
}

// Load implements FrameLoader.
func (l *Loader) Load(ctx context.Context, characterType, phase, clip string) ([]image.Image, error) {
	records, err := l.index.Query(ctx, characterType, phase, clip)
	if err != nil {
		return nil, err
	}

	buffer := make([]image.Image, 0, len(records))
	missing := 0
	for _, rec := range records {
		img, err := l.frames.Read(ctx, rec.Path)
		if err != nil {
			missing++
			l.logger.Warn("skipping unreadable frame", map[string]any{
				"clip":        clip,
				"frame_index": rec.FrameIndex,
				"path":        rec.Path,
				"error":       err.Error(),
			})
			continue
		}
		buffer = append(buffer, img)
	}
	if missing > 0 {
		l.metrics.AddFramesMissing(missing)
	}
	return buffer, nil
}

var _ FrameLoader = (*Loader)(nil)
