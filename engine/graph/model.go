// Package graph maintains the component knowledge graph in Neo4j: which
// components belong to which vehicle system, and which bulletins document
// them. The diagnosis synthesizer uses it to suggest related components.
package graph

import "strings"

// Component is a vehicle part referenced by one or more bulletins.
type Component struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	System     string            `json:"system"`
	Subsystem  string            `json:"subsystem,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Label renders "Name (System / Subsystem)".
func (c Component) Label() string {
	var b strings.Builder
	b.WriteString(c.Name)
	if c.System != "" {
		b.WriteString(" (")
		b.WriteString(c.System)
		if c.Subsystem != "" {
			b.WriteString(" / ")
			b.WriteString(c.Subsystem)
		}
		b.WriteString(")")
	}
	return b.String()
}

// OtherSystem groups components the taxonomy cannot place.
const OtherSystem = "Other"

// NewComponent classifies name against the system taxonomy.
func NewComponent(name string) Component {
	name = strings.TrimSpace(name)
	sys, sub := Classify(name)
	if sys == "" {
		sys = OtherSystem
	}
	return Component{ID: sanitizeID(name), Name: name, System: sys, Subsystem: sub}
}

func componentToMap(c Component) map[string]any {
	m := map[string]any{
		"id":        c.ID,
		"name":      c.Name,
		"system":    c.System,
		"subsystem": c.Subsystem,
	}
	for k, v := range c.Properties {
		m["prop_"+k] = v
	}
	return m
}

func componentFromProps(props map[string]any) (Component, error) {
	c := Component{
		ID:        strProp(props, "id"),
		Name:      strProp(props, "name"),
		System:    strProp(props, "system"),
		Subsystem: strProp(props, "subsystem"),
	}
	for k, v := range props {
		if rest, ok := strings.CutPrefix(k, "prop_"); ok {
			if c.Properties == nil {
				c.Properties = make(map[string]string)
			}
			if s, ok := v.(string); ok {
				c.Properties[rest] = s
			}
		}
	}
	return c, nil
}

func strProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}
