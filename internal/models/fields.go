package models

import (
	"encoding/json"
	"strconv"
)

// Name returns the name of a Resource.
func (r Resource) Name() string {
	return r.String("name")
}

// Mesh returns the mesh a Resource belongs to, if any.
func (r Resource) Mesh() string {
	return r.String("mesh")
}

// Type returns the resource kind as reported by the control plane.
func (r Resource) Type() string {
	return r.String("type")
}

// Labels returns the resource labels as a string map.
func (r Resource) Labels() map[string]string {
	raw := r.Map("labels")
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// Lookup navigates nested objects by key and returns the value found, or nil.
func (r Resource) Lookup(path ...string) interface{} {
	var cur interface{} = map[string]interface{}(r)
	for _, key := range path {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = obj[key]
	}
	return cur
}

// String safely extracts a nested string field, returning "" if absent.
func (r Resource) String(path ...string) string {
	if v, ok := r.Lookup(path...).(string); ok {
		return v
	}
	return ""
}

// Int safely extracts a nested numeric field. Kuma encodes uint64 counters as strings.
func (r Resource) Int(path ...string) int {
	return toInt(r.Lookup(path...))
}

// Bool safely extracts a nested bool field, returning false if absent.
func (r Resource) Bool(path ...string) bool {
	if v, ok := r.Lookup(path...).(bool); ok {
		return v
	}
	return false
}

// Map extracts a nested object.
func (r Resource) Map(path ...string) map[string]interface{} {
	if v, ok := r.Lookup(path...).(map[string]interface{}); ok {
		return v
	}
	return nil
}

// Slice extracts a nested array.
func (r Resource) Slice(path ...string) []interface{} {
	if v, ok := r.Lookup(path...).([]interface{}); ok {
		return v
	}
	return nil
}

// Decode re-marshals the resource into a typed value.
func (r Resource) Decode(dest interface{}) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// toInt converts various numeric types to int.
func toInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}
