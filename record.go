package javaobs

// Record is the placeholder representation of an object whose class has
// no registered host type. It keeps field values per class level so that
// fields shadowed in a subclass survive a round trip.
type Record struct {
	Class *ClassDescriptor

	values      map[string]map[string]any
	annotations map[string][]any
}

// NewRecord returns an empty instance of class.
func NewRecord(class *ClassDescriptor) *Record {
	return &Record{
		Class:       class,
		values:      make(map[string]map[string]any),
		annotations: make(map[string][]any),
	}
}

func (r *Record) ClassName() string {
	if r.Class == nil {
		return ""
	}
	return r.Class.Name
}

// Get returns the value of the named field, searching from the record's
// own class towards its ancestors. The boolean is false when no level
// declares the field.
func (r *Record) Get(name string) (any, bool) {
	for d := r.Class; d != nil; d = d.Super {
		if _, ok := d.Field(name); ok {
			return r.values[d.Name][name], true
		}
	}
	return nil, false
}

// Set assigns the named field on the most derived level declaring it.
func (r *Record) Set(name string, v any) bool {
	for d := r.Class; d != nil; d = d.Super {
		if _, ok := d.Field(name); ok {
			r.SetIn(d.Name, name, v)
			return true
		}
	}
	return false
}

// GetIn returns the value of a field declared by the given class level.
func (r *Record) GetIn(class, name string) any {
	return r.values[class][name]
}

// SetIn assigns a field declared by the given class level.
func (r *Record) SetIn(class, name string, v any) {
	if r.values == nil {
		r.values = make(map[string]map[string]any)
	}
	level, ok := r.values[class]
	if !ok {
		level = make(map[string]any)
		r.values[class] = level
	}
	level[name] = v
}

// Fields flattens the record into one map; subclass fields shadow
// ancestor fields of the same name.
func (r *Record) Fields() map[string]any {
	fields := make(map[string]any)
	if r.Class == nil {
		return fields
	}
	for _, d := range r.Class.Hierarchy() {
		for _, f := range d.Fields {
			fields[f.Name] = r.values[d.Name][f.Name]
		}
	}
	return fields
}

// Annotation returns the data a foreign custom writer appended after the
// default fields of the given class level: []byte block data chunks and
// nested objects, in stream order.
func (r *Record) Annotation(class string) []any {
	return r.annotations[class]
}

// SetAnnotation replaces the annotation of the given class level.
func (r *Record) SetAnnotation(class string, items []any) {
	if r.annotations == nil {
		r.annotations = make(map[string][]any)
	}
	r.annotations[class] = items
}
