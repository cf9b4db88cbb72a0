// Package taste turns drinks and user signals into comparable feature vectors.
package taste

import (
	"slices"
	"strings"

	"github.com/okian/shaker/internal/domain/model"
)

// Normalize lower-cases and trims a categorical label.
func Normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// Layout fixes the slot order of a feature vector:
// taste axes, then one slot per spirit, tag and season of the catalog vocabulary.
type Layout struct {
	axes    []string
	spirits []string
	tags    []string
	seasons []string

	spiritSlot map[string]int
	tagSlot    map[string]int
	seasonSlot map[string]int
	dim        int
}

// NewLayout derives a layout from the vocabulary of drinks.
// Vocabularies are sorted so equal catalogs yield equal layouts.
func NewLayout(axes []string, drinks []model.Drink) *Layout {
	spirits := map[string]struct{}{}
	tags := map[string]struct{}{}
	seasons := map[string]struct{}{}
	for i := range drinks {
		if s := Normalize(drinks[i].PrimarySpirit); s != "" {
			spirits[s] = struct{}{}
		}
		for _, t := range drinks[i].Tags {
			if t = Normalize(t); t != "" {
				tags[t] = struct{}{}
			}
		}
		for _, s := range drinks[i].Season {
			if s = Normalize(s); s != "" {
				seasons[s] = struct{}{}
			}
		}
	}

	l := &Layout{axes: make([]string, 0, len(axes))}
	for _, a := range axes {
		if a = Normalize(a); a != "" && !slices.Contains(l.axes, a) {
			l.axes = append(l.axes, a)
		}
	}
	off := len(l.axes)
	l.spirits, l.spiritSlot, off = block(spirits, off)
	l.tags, l.tagSlot, off = block(tags, off)
	l.seasons, l.seasonSlot, off = block(seasons, off)
	l.dim = off
	return l
}

func block(set map[string]struct{}, off int) ([]string, map[string]int, int) {
	labels := make([]string, 0, len(set))
	for k := range set {
		labels = append(labels, k)
	}
	slices.Sort(labels)
	slots := make(map[string]int, len(labels))
	for i, k := range labels {
		slots[k] = off + i
	}
	return labels, slots, off + len(labels)
}

// Dim is the vector length.
func (l *Layout) Dim() int { return l.dim }

// Axes returns the taste axes in slot order.
func (l *Layout) Axes() []string { return slices.Clone(l.axes) }

// Spirits returns the spirit vocabulary in slot order.
func (l *Layout) Spirits() []string { return slices.Clone(l.spirits) }

// Tags returns the tag vocabulary in slot order.
func (l *Layout) Tags() []string { return slices.Clone(l.tags) }

// Seasons returns the season vocabulary in slot order.
func (l *Layout) Seasons() []string { return slices.Clone(l.seasons) }

// SpiritSlot returns the slot of a spirit label.
func (l *Layout) SpiritSlot(label string) (int, bool) {
	i, ok := l.spiritSlot[Normalize(label)]
	return i, ok
}

// TagSlot returns the slot of a tag label.
func (l *Layout) TagSlot(label string) (int, bool) {
	i, ok := l.tagSlot[Normalize(label)]
	return i, ok
}

// SeasonSlot returns the slot of a season label.
func (l *Layout) SeasonSlot(label string) (int, bool) {
	i, ok := l.seasonSlot[Normalize(label)]
	return i, ok
}
