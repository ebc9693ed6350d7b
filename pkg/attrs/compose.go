package attrs

// Compose merges caller attributes into the protocol attributes. Protocol
// values always win and always come first; caller attributes may add new keys
// and new entries to shared namespaces, in caller order.
//
// A caller key is dropped when it collides with a protocol key in any
// spelling, or when it names or nests below one of the protocol-owned data
// keys, even if the current mode does not emit that key. Keys that are not
// valid attribute names are dropped too.
func Compose(protocol, caller Attributes) Attributes {
	out := make(Attributes, 0, len(protocol)+len(caller))
	taken := make(map[string]struct{}, len(protocol)+len(caller))

	for _, attr := range protocol {
		key := Normalize(attr.Name)
		value := attr.Value
		if nested, ok := value.(Attributes); ok {
			if callerNested, ok := lookupNamespace(caller, key); ok {
				value = Compose(nested, sanitize(callerNested, key))
			}
		}
		out = append(out, Attr{Name: attr.Name, Value: value})
		taken[key] = struct{}{}
		for _, flat := range flatNames(attr.Name, value) {
			taken[flat] = struct{}{}
		}
	}

	for _, attr := range caller {
		key := Normalize(attr.Name)
		if !ValidName(key) {
			continue
		}
		if _, exists := taken[key]; exists {
			continue
		}
		if IsReserved(key) {
			continue
		}
		value := attr.Value
		if nested, ok := value.(Attributes); ok {
			value = sanitize(nested, key)
		}
		if collides(key, value, taken) {
			continue
		}
		out = append(out, Attr{Name: attr.Name, Value: value})
		taken[key] = struct{}{}
	}

	return out
}

// Sanitize returns caller attributes with every protocol-owned key removed.
func Sanitize(caller Attributes) Attributes {
	return Compose(nil, caller)
}

// sanitize strips protocol-owned keys from a caller namespace.
func sanitize(nested Attributes, namespace string) Attributes {
	out := make(Attributes, 0, len(nested))
	for _, attr := range nested {
		key := Normalize(attr.Name)
		if !ValidName(key) {
			continue
		}
		if namespace == DataNamespace && IsReserved(key) {
			continue
		}
		if IsReserved(namespace + "-" + key) {
			continue
		}
		value := attr.Value
		if deeper, ok := value.(Attributes); ok {
			value = sanitize(deeper, namespace+"-"+key)
		}
		out = append(out, Attr{Name: attr.Name, Value: value})
	}
	return out
}

func lookupNamespace(a Attributes, key string) (Attributes, bool) {
	for _, attr := range a {
		if Normalize(attr.Name) != key {
			continue
		}
		nested, ok := attr.Value.(Attributes)
		return nested, ok
	}
	return nil, false
}

// collides reports whether any flattened name produced by a caller attribute
// is already owned by the protocol side.
func collides(key string, value any, taken map[string]struct{}) bool {
	for _, flat := range flatNames(key, value) {
		if _, exists := taken[flat]; exists {
			return true
		}
	}
	return false
}

func flatNames(name string, value any) []string {
	key := Normalize(name)
	nested, ok := value.(Attributes)
	if !ok {
		return []string{key}
	}
	var out []string
	for _, attr := range nested {
		for _, flat := range flatNames(attr.Name, attr.Value) {
			out = append(out, key+"-"+flat)
		}
	}
	return out
}
