package spleef

import "strings"

var DefaultBreakable = []string{
	"snow_block",
	"wool",
	"clay",
	"dirt",
	"tnt",
}

// MaterialSet is the set of materials players may break during a round.
type MaterialSet map[string]struct{}

func normalize(material string) string {
	material = strings.ToLower(strings.TrimSpace(material))
	return strings.TrimPrefix(material, "minecraft:")
}

func NewMaterialSet(materials ...string) MaterialSet {
	set := make(MaterialSet, len(materials))
	for _, material := range materials {
		set[normalize(material)] = struct{}{}
	}
	return set
}

func (m MaterialSet) Contains(material string) bool {
	_, ok := m[normalize(material)]
	return ok
}
