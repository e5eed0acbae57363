package addon

import "strings"

// Manifest is the addon manifest as served from an addon's transport URL.
// The id is the stable identity of a logical addon; the version string is
// opaque and only ever compared for inequality.
type Manifest struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	Version       string                 `json:"version"`
	Description   string                 `json:"description,omitempty"`
	Logo          string                 `json:"logo,omitempty"`
	Background    string                 `json:"background,omitempty"`
	Types         []string               `json:"types,omitempty"`
	Catalogs      []Catalog              `json:"catalogs,omitempty"`
	Resources     []any                  `json:"resources,omitempty"`
	IDPrefixes    []string               `json:"idPrefixes,omitempty"`
	BehaviorHints map[string]any         `json:"behaviorHints,omitempty"`
}

// Catalog is a single catalog advertised by a manifest.
type Catalog struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Extra []any  `json:"extra,omitempty"`
}

// Flags carries the per-installation markers the remote service sets on
// descriptors. Protected addons may never be replaced or removed.
type Flags struct {
	Official  bool `json:"official,omitempty"`
	Protected bool `json:"protected,omitempty"`
}

// Descriptor is an addon as installed in a remote account collection.
// A collection is an ordered sequence; order is user-visible priority.
type Descriptor struct {
	TransportURL  string   `json:"transportUrl"`
	TransportName string   `json:"transportName,omitempty"`
	Manifest      Manifest `json:"manifest"`
	Flags         *Flags   `json:"flags,omitempty"`
}

// IsProtected reports whether the descriptor is marked protected.
func (d Descriptor) IsProtected() bool {
	return d.Flags != nil && d.Flags.Protected
}

// IsOfficial reports whether the descriptor is marked official.
func (d Descriptor) IsOfficial() bool {
	return d.Flags != nil && d.Flags.Official
}

// IndexByID returns the index of the descriptor whose manifest id equals
// id, or -1 when absent. Uniqueness within a collection is by manifest id.
func IndexByID(collection []Descriptor, id string) int {
	for i, d := range collection {
		if d.Manifest.ID == id {
			return i
		}
	}
	return -1
}

// CloneCollection returns a shallow copy of the collection slice so pure
// computations never alias the caller's backing array.
func CloneCollection(collection []Descriptor) []Descriptor {
	out := make([]Descriptor, len(collection))
	copy(out, collection)
	return out
}

// NormalizeTag canonicalizes a tag for matching: trimmed and lowercased.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
