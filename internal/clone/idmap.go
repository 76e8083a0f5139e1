package clone

import (
	"sort"
	"sync"

	"guildmirror/internal/discord"
)

// MappedChannel pairs a source channel with the id of its copy.
type MappedChannel struct {
	Source   discord.Channel
	TargetID string
}

// IDMap holds source→target ids for one run. Written during the sequential
// phases, read by the concurrent message jobs.
type IDMap struct {
	mu       sync.RWMutex
	roles    map[string]string
	channels map[string]MappedChannel
}

func NewIDMap() *IDMap {
	return &IDMap{roles: map[string]string{}, channels: map[string]MappedChannel{}}
}

func (m *IDMap) SetRole(sourceID, targetID string) {
	m.mu.Lock()
	m.roles[sourceID] = targetID
	m.mu.Unlock()
}

func (m *IDMap) Role(sourceID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.roles[sourceID]
	return id, ok
}

func (m *IDMap) SetChannel(source discord.Channel, targetID string) {
	m.mu.Lock()
	m.channels[source.ID] = MappedChannel{Source: source, TargetID: targetID}
	m.mu.Unlock()
}

func (m *IDMap) Channel(sourceID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mc, ok := m.channels[sourceID]
	return mc.TargetID, ok
}

// Channels returns every mapped channel ordered by type then position.
func (m *IDMap) Channels() []MappedChannel {
	m.mu.RLock()
	out := make([]MappedChannel, 0, len(m.channels))
	for _, mc := range m.channels {
		out = append(out, mc)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Source, out[j].Source
		if a.Type != b.Type {
			return a.Type > b.Type
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return lessSnowflake(a.ID, b.ID)
	})
	return out
}

// Pairs flattens both tables into kind/source/target triples.
func (m *IDMap) Pairs() []IDPair {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]IDPair, 0, len(m.roles)+len(m.channels))
	for s, t := range m.roles {
		out = append(out, IDPair{Kind: "role", SourceID: s, TargetID: t})
	}
	for s, mc := range m.channels {
		out = append(out, IDPair{Kind: mc.Source.Type.String(), SourceID: s, TargetID: mc.TargetID})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return lessSnowflake(out[i].SourceID, out[j].SourceID)
	})
	return out
}

type IDPair struct {
	Kind     string `json:"kind"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}

// lessSnowflake compares numeric ids without parsing them.
func lessSnowflake(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
