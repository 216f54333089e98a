package dom

import (
	"sync"

	"github.com/google/uuid"

	"github.com/liuxd6825/marionette/api"
)

// Keys of a serialized element reference.
const (
	ElementKey    = "ELEMENT"
	W3CElementKey = "element-6066-11e4-a52e-4f735466cecf"
)

// KnownElements issues handles for elements handed out to clients and
// resolves them again.
type KnownElements struct {
	mu      sync.Mutex
	handles map[string]api.Element
}

// NewKnownElements returns an empty arena.
func NewKnownElements() *KnownElements {
	return &KnownElements{handles: make(map[string]api.Element)}
}

// Add returns the handle of el, issuing a new one unless el is known.
func (k *KnownElements) Add(el api.Element) string {
	k.mu.Lock()
	defer k.mu.Unlock()

	for h, known := range k.handles {
		if known.SameAs(el) {
			return h
		}
	}
	h := uuid.NewString()
	k.handles[h] = el
	return h
}

// Get resolves handle.
func (k *KnownElements) Get(handle string) (api.Element, error) {
	k.mu.Lock()
	el, ok := k.handles[handle]
	k.mu.Unlock()

	if !ok {
		return nil, api.NewError(api.NoSuchElement, "Element %s is not known", handle)
	}
	if !el.Attached() {
		return nil, staleError()
	}
	return el, nil
}

// Reference returns the JSON form of el.
func (k *KnownElements) Reference(el api.Element) map[string]interface{} {
	return map[string]interface{}{ElementKey: k.Add(el)}
}

// ToJSON replaces the elements in v by references.
func (k *KnownElements) ToJSON(v interface{}) interface{} {
	switch t := v.(type) {
	case api.Element:
		return k.Reference(t)
	case []api.Element:
		out := make([]interface{}, len(t))
		for i, el := range t {
			out[i] = k.Reference(el)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = k.ToJSON(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for key, e := range t {
			out[key] = k.ToJSON(e)
		}
		return out
	}
	return v
}

// FromJSON replaces the references in v by the elements they point to.
func (k *KnownElements) FromJSON(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			var err error
			if out[i], err = k.FromJSON(e); err != nil {
				return nil, err
			}
		}
		return out, nil
	case map[string]interface{}:
		if h, ok := referenceHandle(t); ok {
			return k.Get(h)
		}
		out := make(map[string]interface{}, len(t))
		for key, e := range t {
			var err error
			if out[key], err = k.FromJSON(e); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return v, nil
}

// Reset forgets all handles.
func (k *KnownElements) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.handles = make(map[string]api.Element)
}

// HandleFrom extracts a handle from a string or a serialized reference.
func HandleFrom(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case map[string]interface{}:
		return referenceHandle(t)
	case api.Params:
		return referenceHandle(t)
	}
	return "", false
}

func referenceHandle(m map[string]interface{}) (string, bool) {
	if len(m) == 0 || len(m) > 2 {
		return "", false
	}
	for _, key := range []string{ElementKey, W3CElementKey} {
		if h, ok := m[key].(string); ok && h != "" {
			return h, true
		}
	}
	return "", false
}
