package types

import (
	"errors"
	"fmt"
	"sort"
)

// PlaybackMode selects how the playback engine advances through a clip.
type PlaybackMode string

const (
	// ModeLoop wraps from the last frame back to the first.
	ModeLoop PlaybackMode = "loop"
	// ModePingPong plays forward then backward between the first and last frame.
	ModePingPong PlaybackMode = "pingpong"
	// ModeOneShot plays forward once, then hands off to the clip named by Next.
	ModeOneShot PlaybackMode = "oneshot"
)

// Valid reports whether m is a known playback mode.
func (m PlaybackMode) Valid() bool {
	switch m {
	case ModeLoop, ModePingPong, ModeOneShot:
		return true
	}
	return false
}

// DefaultClip is the clip shown when a phase becomes ready.
const DefaultClip = "normal"

// ClipSpec is the static configuration of one animation clip.
type ClipSpec struct {
	Name   string       `yaml:"name" json:"name"`
	Frames int          `yaml:"frames" json:"frames"`
	Mode   PlaybackMode `yaml:"mode" json:"mode"`
	// Next is the successor clip for ModeOneShot. Ignored otherwise.
	Next string `yaml:"next,omitempty" json:"next,omitempty"`
}

// PhaseSpec is the clip set required by one growth phase of a character.
type PhaseSpec struct {
	DefaultClip string     `yaml:"default_clip" json:"default_clip"`
	Clips       []ClipSpec `yaml:"clips" json:"clips"`
}

// Clip returns the spec of the named clip.
func (p PhaseSpec) Clip(name string) (ClipSpec, bool) {
	for _, c := range p.Clips {
		if c.Name == name {
			return c, true
		}
	}
	return ClipSpec{}, false
}

// TotalFrames is the sum of expected frame counts over every clip.
func (p PhaseSpec) TotalFrames() int {
	total := 0
	for _, c := range p.Clips {
		total += c.Frames
	}
	return total
}

// Default returns the configured default clip name, falling back to DefaultClip.
func (p PhaseSpec) Default() string {
	if p.DefaultClip != "" {
		return p.DefaultClip
	}
	return DefaultClip
}

// Validate checks frame counts, modes and successor references.
func (p PhaseSpec) Validate() error {
	if len(p.Clips) == 0 {
		return errors.New("phase has no clips")
	}
	seen := make(map[string]struct{}, len(p.Clips))
	for _, c := range p.Clips {
		if c.Name == "" {
			return errors.New("clip name is required")
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("duplicate clip %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		if c.Frames < 1 {
			return fmt.Errorf("clip %q: frames must be >= 1, got %d", c.Name, c.Frames)
		}
		if !c.Mode.Valid() {
			return fmt.Errorf("clip %q: invalid mode %q", c.Name, c.Mode)
		}
	}
	for _, c := range p.Clips {
		if c.Mode != ModeOneShot {
			continue
		}
		if c.Next == "" {
			return fmt.Errorf("clip %q: oneshot clip requires next", c.Name)
		}
		if _, ok := seen[c.Next]; !ok {
			return fmt.Errorf("clip %q: unknown next clip %q", c.Name, c.Next)
		}
	}
	if err := p.checkInstantCycles(); err != nil {
		return err
	}
	if _, ok := seen[p.Default()]; !ok {
		return fmt.Errorf("default clip %q is not part of the phase", p.Default())
	}
	return nil
}

// checkInstantCycles rejects successor loops made only of single-frame
// one-shot clips. Such clips chain as soon as they load, so a loop of them
// never reaches a frame that stays on screen.
func (p PhaseSpec) checkInstantCycles() error {
	for _, start := range p.Clips {
		visited := map[string]bool{}
		c := start
		for c.Mode == ModeOneShot && c.Frames == 1 {
			if visited[c.Name] {
				return fmt.Errorf("clip %q: single-frame oneshot cycle", start.Name)
			}
			visited[c.Name] = true
			next, ok := p.Clip(c.Next)
			if !ok {
				break
			}
			c = next
		}
	}
	return nil
}

// Catalog maps character type → phase → required clip set.
// A character/phase pair must be present here before frames for it can be
// downloaded or played.
type Catalog map[string]map[string]PhaseSpec

// Phase returns the clip set for a character and phase.
func (c Catalog) Phase(characterType, phase string) (PhaseSpec, bool) {
	phases, ok := c[characterType]
	if !ok {
		return PhaseSpec{}, false
	}
	spec, ok := phases[phase]
	return spec, ok
}

// Characters returns the configured character types, sorted.
func (c Catalog) Characters() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Phases returns the configured phases of a character, sorted.
func (c Catalog) Phases(characterType string) []string {
	phases := c[characterType]
	names := make([]string, 0, len(phases))
	for name := range phases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge returns a catalog holding c overlaid with other.
// Entries in other replace whole phases of c.
func (c Catalog) Merge(other Catalog) Catalog {
	out := make(Catalog, len(c)+len(other))
	for char, phases := range c {
		out[char] = make(map[string]PhaseSpec, len(phases))
		for phase, spec := range phases {
			out[char][phase] = spec
		}
	}
	for char, phases := range other {
		if out[char] == nil {
			out[char] = make(map[string]PhaseSpec, len(phases))
		}
		for phase, spec := range phases {
			out[char][phase] = spec
		}
	}
	return out
}

// Validate validates every phase in the catalog.
func (c Catalog) Validate() error {
	for _, char := range c.Characters() {
		for _, phase := range c.Phases(char) {
			if err := c[char][phase].Validate(); err != nil {
				return fmt.Errorf("catalog %s/%s: %w", char, phase, err)
			}
		}
	}
	return nil
}

// DefaultCatalog returns the built-in clip table.
// Only quokka/infant is fully specified; other phases come from config.
func DefaultCatalog() Catalog {
	return Catalog{
		"quokka": {
			"infant": {
				DefaultClip: DefaultClip,
				Clips: []ClipSpec{
					{Name: "normal", Frames: 122, Mode: ModePingPong},
					{Name: "sleeping", Frames: 1, Mode: ModeLoop},
					{Name: "eating", Frames: 1, Mode: ModeLoop},
					{Name: "sleep1Start", Frames: 204, Mode: ModeOneShot, Next: "sleep2Pingpong"},
					{Name: "sleep2Pingpong", Frames: 60, Mode: ModePingPong},
					{Name: "sleep3mouth", Frames: 54, Mode: ModePingPong},
					{Name: "sleep4WakeUp", Frames: 173, Mode: ModeOneShot, Next: "normal"},
				},
			},
		},
	}
}
