package download

import (
	"context"
	"fmt"

	"github.com/justapithecus/petframes/types"
)

// ClipStatus is the completeness of one clip.
type ClipStatus struct {
	Clip     string `json:"clip"`
	Expected int    `json:"expected"`
	Indexed  int    `json:"indexed"`
	// Sampled is the number of records whose files were checked.
	Sampled int `json:"sampled"`
	// Missing is the number of sampled records without a file.
	Missing  int  `json:"missing"`
	Complete bool `json:"complete"`
}

// Inspect reports per-clip completeness of a phase without changing anything.
func (c *Coordinator) Inspect(ctx context.Context, characterType, phase string) ([]ClipStatus, error) {
	spec, ok := c.catalog.Phase(characterType, phase)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnsupported, characterType, phase)
	}
	out := make([]ClipStatus, 0, len(spec.Clips))
	for _, clip := range spec.Clips {
		st, err := c.clipStatus(ctx, characterType, phase, clip)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (c *Coordinator) clipStatus(ctx context.Context, characterType, phase string, clip types.ClipSpec) (ClipStatus, error) {
	st := ClipStatus{Clip: clip.Name, Expected: clip.Frames}

	n, err := c.index.Count(ctx, characterType, phase, clip.Name)
	if err != nil {
		return st, err
	}
	st.Indexed = n
	if n != clip.Frames {
		return st, nil
	}

	records, err := c.index.Query(ctx, characterType, phase, clip.Name)
	if err != nil {
		return st, err
	}
	for i, rec := range records {
		if i >= c.sampleSize {
			break
		}
		st.Sampled++
		if !c.frames.Exists(ctx, rec.Path) {
			st.Missing++
		}
	}
	st.Complete = st.Missing == 0
	return st, nil
}

// Purge deletes the index records of every clip of a phase. With removeFiles
// set, the expected frame files are removed from the frame store as well.
// It returns the number of clips purged.
func (c *Coordinator) Purge(ctx context.Context, characterType, phase string, removeFiles bool) (int, error) {
	spec, ok := c.catalog.Phase(characterType, phase)
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrUnsupported, characterType, phase)
	}

	if c.lock != nil {
		locked, err := c.lock.TryLock()
		if err != nil {
			return 0, fmt.Errorf("acquire download lock: %w", err)
		}
		if !locked {
			return 0, ErrSessionInProgress
		}
		defer func() { _ = c.lock.Unlock() }()
	}

	for _, clip := range spec.Clips {
		if err := c.index.DeleteAll(ctx, characterType, phase, clip.Name); err != nil {
			c.metrics.IncIndexError()
			return 0, fmt.Errorf("purge %s: %w", clip.Name, err)
		}
		if !removeFiles {
			continue
		}
		for i := 1; i <= clip.Frames; i++ {
			key := types.FrameKey{CharacterType: characterType, Phase: phase, Clip: clip.Name, FrameIndex: i}
			if !c.frames.Exists(ctx, key.LocalPath()) {
				continue
			}
			if err := c.frames.Remove(ctx, key.LocalPath()); err != nil {
				return 0, fmt.Errorf("remove %s: %w", key, err)
			}
		}
	}
	c.metrics.AddClipsPurged(len(spec.Clips))
	c.logger.Info("phase purged", map[string]any{
		"character_type": characterType,
		"phase":          phase,
		"clips":          len(spec.Clips),
		"files":          removeFiles,
	})
	return len(spec.Clips), nil
}
