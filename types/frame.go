// Package types defines the shared domain model for petframes: frame records,
// clip configuration and the storage path conventions.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"fmt"
	"path"
)

// AnimationsPrefix is the root of every frame path, remote and local.
const AnimationsPrefix = "animations"

// FrameExt is the file extension of stored frames.
const FrameExt = ".png"

// FrameKey identifies one frame of one clip.
// FrameIndex is 1-based, matching the stored asset names.
type FrameKey struct {
	CharacterType string
	Phase         string
	Clip          string
	FrameIndex    int
}

// FileName returns the asset file name, e.g. "quokka_infant_normal_12.png".
func (k FrameKey) FileName() string {
	return fmt.Sprintf("%s_%s_%s_%d%s", k.CharacterType, k.Phase, k.Clip, k.FrameIndex, FrameExt)
}

// ClipDir returns the directory holding every frame of the key's clip.
// Format: animations/<character>/<phase>/<clip>
func (k FrameKey) ClipDir() string {
	return path.Join(AnimationsPrefix, k.CharacterType, k.Phase, k.Clip)
}

// RemotePath returns the object-store key of the frame.
// Format: animations/<character>/<phase>/<clip>/<character>_<phase>_<clip>_<index>.png
//
// The layout must match existing stored assets exactly.
func (k FrameKey) RemotePath() string {
	return path.Join(k.ClipDir(), k.FileName())
}

// LocalPath returns the frame path relative to the local frame root.
// It mirrors RemotePath.
func (k FrameKey) LocalPath() string {
	return k.RemotePath()
}

// String implements fmt.Stringer.
func (k FrameKey) String() string {
	return fmt.Sprintf("%s/%s/%s#%d", k.CharacterType, k.Phase, k.Clip, k.FrameIndex)
}

// FrameRecord is the persisted metadata of one downloaded frame.
// The tuple (CharacterType, Phase, Clip, FrameIndex) is unique within an index.
// Records are created on successful download and deleted in bulk on purge;
// they are never updated in place.
type FrameRecord struct {
	CharacterType     string `json:"character_type"`
	Phase             string `json:"phase"`
	Clip              string `json:"clip"`
	FrameIndex        int    `json:"frame_index"`
	Path              string `json:"path"`
	ByteSize          int64  `json:"byte_size"`
	TotalFramesInClip int    `json:"total_frames_in_clip"`
}

// Key returns the identifying tuple of the record.
func (r FrameRecord) Key() FrameKey {
	return FrameKey{
		CharacterType: r.CharacterType,
		Phase:         r.Phase,
		Clip:          r.Clip,
		FrameIndex:    r.FrameIndex,
	}
}

// Validate checks the record field constraints.
func (r FrameRecord) Validate() error {
	switch {
	case r.CharacterType == "":
		return fmt.Errorf("frame record: character type is required")
	case r.Phase == "":
		return fmt.Errorf("frame record: phase is required")
	case r.Clip == "":
		return fmt.Errorf("frame record: clip is required")
	case r.FrameIndex < 1:
		return fmt.Errorf("frame record: frame index must be >= 1, got %d", r.FrameIndex)
	case r.Path == "":
		return fmt.Errorf("frame record: path is required")
	case r.ByteSize < 0:
		return fmt.Errorf("frame record: byte size must be >= 0, got %d", r.ByteSize)
	case r.TotalFramesInClip < 1:
		return fmt.Errorf("frame record: total frames must be >= 1, got %d", r.TotalFramesInClip)
	}
	return nil
}
