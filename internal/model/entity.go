package model

import "time"

type State struct {
	Name  string
	Value Value
	// Counter marks a cumulative total that only grows between samples.
	Counter bool
}

type Entity struct {
	ID            string
	Name          string
	Kind          string
	Place         Optional[string]
	OperatingMode Optional[string]
	Attributes    map[string]string
	States        []State
	Children      []*Entity
}

const (
	AttrID            = "id"
	AttrName          = "name"
	AttrPlace         = "place"
	AttrOperatingMode = "operating_mode"
)

// Attr looks up a tag source on the entity. The well-known fields take
// precedence over Attributes.
func (e *Entity) Attr(key string) Optional[string] {
	switch key {
	case AttrID:
		return NonEmpty(e.ID)
	case AttrName:
		return NonEmpty(e.Name)
	case AttrPlace:
		return e.Place
	case AttrOperatingMode:
		return e.OperatingMode
	}
	if v, ok := e.Attributes[key]; ok {
		return Some(v)
	}
	return None[string]()
}

func (e *Entity) SetAttr(key, value string) {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
}

func (e *Entity) AddState(name string, v Value) {
	e.States = append(e.States, State{Name: name, Value: v})
}

func (e *Entity) AddCounter(name string, v Value) {
	e.States = append(e.States, State{Name: name, Value: v, Counter: true})
}

type Snapshot struct {
	Source    string
	FetchedAt time.Time
	Entities  []*Entity
}

func NewSnapshot(source string) *Snapshot {
	return &Snapshot{
		Source:    source,
		FetchedAt: time.Now().UTC(),
	}
}
