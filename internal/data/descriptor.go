package data

import "strings"

// ComponentDescriptor uniquely names a column within an entity.
//
// Component is the column's logical name and the only mandatory field.
// Archetype and Type are optional semantic labels: the archetype the
// column was logged as part of, and the payload type it decodes to.
// Descriptors are value-compared.
type ComponentDescriptor struct {
	// Archetype is the name of the archetype the column belongs to,
	// e.g. "chronolog.Points2D". May be empty.
	Archetype string

	// Component is the column's logical name, e.g. "positions".
	Component string

	// Type is the component type label, e.g. "chronolog.Position2D".
	// May be empty; when set, the store enforces that all observations
	// of (entity, Component) agree on it.
	Type string
}

// Compare orders descriptors by (Component, Archetype, Type).
func (d ComponentDescriptor) Compare(other ComponentDescriptor) int {
	if c := strings.Compare(d.Component, other.Component); c != 0 {
		return c
	}
	if c := strings.Compare(d.Archetype, other.Archetype); c != 0 {
		return c
	}
	return strings.Compare(d.Type, other.Type)
}

func (d ComponentDescriptor) String() string {
	var sb strings.Builder
	if d.Archetype != "" {
		sb.WriteString(d.Archetype)
		sb.WriteByte(':')
	}
	sb.WriteString(d.Component)
	if d.Type != "" {
		sb.WriteByte('#')
		sb.WriteString(d.Type)
	}
	return sb.String()
}

// Archetype is a named bundle of components forming a semantic view,
// e.g. Points2D = {positions, colors?, labels?}. The first component is
// the primary (point-of-view) component: a latest-at query through the
// cache has no result at times where the primary carries no data. Range
// queries through the cache emit every row at which any of the
// archetype's components has data, whether or not the primary does.
type Archetype struct {
	Name       string
	Components []ComponentDescriptor
}

// Primary returns the archetype's point-of-view component.
func (a Archetype) Primary() ComponentDescriptor {
	if len(a.Components) == 0 {
		return ComponentDescriptor{}
	}
	return a.Components[0]
}
