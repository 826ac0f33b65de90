package javaobs

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"
)

// Capability selects how instances of a bound type are read and written.
type Capability uint8

const (
	// DefaultFields reads and writes declared fields in descriptor order.
	DefaultFields Capability = iota
	// CustomSerialization delegates to the type's CustomSerializer methods.
	CustomSerialization
)

func (c Capability) String() string {
	switch c {
	case DefaultFields:
		return "default-fields"
	case CustomSerialization:
		return "custom"
	default:
		return fmt.Sprintf("capability(%d)", uint8(c))
	}
}

var (
	recordType           = reflect.TypeOf(Record{})
	arrayType            = reflect.TypeOf(Array{})
	customSerializerType = reflect.TypeOf((*CustomSerializer)(nil)).Elem()
)

// Binding associates a canonical class name with the host type its
// instances are materialized as.
type Binding struct {
	Name       string
	TypeName   string
	Namespace  *Namespace
	Type       reflect.Type
	Capability Capability
	// Synthesized is set for placeholder bindings created on first
	// encounter of an unregistered name.
	Synthesized bool
	// Class is the descriptor a placeholder was synthesized from.
	Class *ClassDescriptor
	// Element is the element type of array bindings.
	Element PrimitiveType

	fields map[string][]int
}

// Accessors returns the foreign field names instances of the binding
// expose, in a stable order.
func (b *Binding) Accessors() []string {
	var names []string
	switch {
	case b.Type == recordType && b.Class != nil:
		for _, d := range b.Class.Hierarchy() {
			for _, f := range d.Fields {
				names = append(names, f.Name)
			}
		}
	default:
		for name := range b.fields {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	return names
}

// New allocates an empty instance for desc.
func (b *Binding) New(desc *ClassDescriptor) any {
	switch b.Type {
	case recordType:
		return NewRecord(desc)
	case arrayType:
		return newArray(desc)
	}
	return reflect.New(b.Type).Interface()
}

func (b *Binding) structValue(object any) (reflect.Value, bool) {
	v := reflect.ValueOf(object)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, v.Kind() == reflect.Struct && v.Type() == b.Type
}

// setField stores a decoded field value on a registered struct instance.
// Fields the Go type does not declare are dropped.
func (b *Binding) setField(object any, class, name string, value any) error {
	if record, ok := object.(*Record); ok {
		record.SetIn(class, name, value)
		return nil
	}
	v, ok := b.structValue(object)
	if !ok || !v.CanSet() {
		return fmt.Errorf("setField: %T is not an addressable %v", object, b.Type)
	}
	index, ok := b.fields[name]
	if !ok {
		return nil
	}
	f, err := v.FieldByIndexErr(index)
	if err != nil {
		return nil
	}
	if err := assignValue(f, value); err != nil {
		return fmt.Errorf("setField %s.%s: %w", class, name, err)
	}
	return nil
}

func (b *Binding) getField(object any, class, name string) any {
	if record, ok := object.(*Record); ok {
		return record.GetIn(class, name)
	}
	v, ok := b.structValue(object)
	if !ok {
		return nil
	}
	index, ok := b.fields[name]
	if !ok {
		return nil
	}
	f, err := v.FieldByIndexErr(index)
	if err != nil || !f.CanInterface() {
		return nil
	}
	return f.Interface()
}

// Namespace is a container of bindings derived from the dotted prefix of
// canonical names: "com.example.geo.Point" lives in Example/Geo.
type Namespace struct {
	Name   string
	Parent *Namespace

	children map[string]*Namespace
	types    map[string]*Binding
}

func newNamespace(name string, parent *Namespace) *Namespace {
	return &Namespace{
		Name:     name,
		Parent:   parent,
		children: make(map[string]*Namespace),
		types:    make(map[string]*Binding),
	}
}

// Child returns the nested namespace with the given name, or nil.
func (ns *Namespace) Child(name string) *Namespace {
	return ns.children[name]
}

// Type returns the binding with the given type name, or nil.
func (ns *Namespace) Type(name string) *Binding {
	return ns.types[name]
}

// Path returns the names from the root namespace down to ns.
func (ns *Namespace) Path() []string {
	var path []string
	for n := ns; n != nil && n.Parent != nil; n = n.Parent {
		path = append([]string{n.Name}, path...)
	}
	return path
}

// Registry maps canonical class names to host type bindings and keeps the
// class descriptors needed to write instances. A registry may be shared
// by concurrent sessions once its bindings are established.
type Registry struct {
	mu          sync.RWMutex
	bindings    map[string]*Binding
	byType      map[reflect.Type]*Binding
	descriptors map[string]*ClassDescriptor
	root        *Namespace
	logger      *zap.Logger
}

// DefaultRegistry is used by sessions created without WithRegistry.
var DefaultRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		bindings:    make(map[string]*Binding),
		byType:      make(map[reflect.Type]*Binding),
		descriptors: make(map[string]*ClassDescriptor),
		root:        newNamespace("", nil),
	}
}

// SetLogger configures the registry's logger; by default it logs through
// the package Logger.
func (r *Registry) SetLogger(l *zap.Logger) {
	r.mu.Lock()
	r.logger = l
	r.mu.Unlock()
}

func (r *Registry) log() *zap.Logger {
	if r.logger != nil {
		return r.logger
	}
	return Logger()
}

// Register binds name to a Go struct type. With CustomSerialization the
// pointer type must implement CustomSerializer; with DefaultFields the
// struct's exported fields receive the declared foreign fields, matched
// by `javaobs:"name"` tag or by lower-camel-cased Go field name.
func (r *Registry) Register(name string, typ reflect.Type, capability Capability) error {
	if name == "" || name[0] == '[' {
		return fmt.Errorf("Register: %q cannot be bound to a host type", name)
	}
	for typ != nil && typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return fmt.Errorf("Register: %s must be bound to a struct type", name)
	}
	if capability == CustomSerialization && !reflect.PointerTo(typ).Implements(customSerializerType) {
		return fmt.Errorf("Register: *%v does not implement CustomSerializer", typ)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b := &Binding{
		Name:       name,
		Type:       typ,
		Capability: capability,
		fields:     structFields(typ),
	}
	r.place(b)
	r.bindings[name] = b
	r.byType[typ] = b
	if d, ok := r.descriptors[name]; ok {
		d.binding = b
	}
	return nil
}

// Lookup returns the binding registered or synthesized for name.
func (r *Registry) Lookup(name string) (*Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[name]
	return b, ok
}

// Resolve returns the binding for desc's name, synthesizing a placeholder
// on first encounter, and attaches it to desc. Resolving the same name
// again returns the same binding. Descriptors shared between sessions
// should be attached through AddDescriptor instead.
func (r *Registry) Resolve(desc *ClassDescriptor) *Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.resolveLocked(desc)
	desc.binding = b
	return b
}

// binding returns the binding for desc's name without attaching it.
func (r *Registry) binding(desc *ClassDescriptor) *Binding {
	r.mu.RLock()
	b, ok := r.bindings[desc.Name]
	r.mu.RUnlock()
	if ok {
		return b
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(desc)
}

func (r *Registry) resolveLocked(desc *ClassDescriptor) *Binding {
	if b, ok := r.bindings[desc.Name]; ok {
		return b
	}
	return r.synthesize(desc)
}

func (r *Registry) synthesize(desc *ClassDescriptor) *Binding {
	b := &Binding{
		Name:        desc.Name,
		Type:        recordType,
		Capability:  DefaultFields,
		Synthesized: true,
		Class:       desc,
	}
	if desc.IsArray() {
		b.Type = arrayType
		b.Element = desc.ElementType
	}
	r.place(b)
	r.bindings[desc.Name] = b
	r.log().Debug("synthesized binding",
		zap.String("class", desc.Name),
		zap.Strings("namespace", b.Namespace.Path()),
		zap.String("type", b.TypeName))
	return b
}

// place files b under the namespace derived from its name, creating
// intermediate namespaces on demand.
func (r *Registry) place(b *Binding) {
	path, leaf := namespacePath(b.Name)
	ns := r.root
	for _, name := range path {
		child, ok := ns.children[name]
		if !ok {
			child = newNamespace(name, ns)
			ns.children[name] = child
		}
		ns = child
	}
	ns.types[leaf] = b
	b.Namespace = ns
	b.TypeName = leaf
}

// Namespace returns the namespace at path, e.g. ("Example", "Geo").
func (r *Registry) Namespace(path ...string) (*Namespace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns := r.root
	for _, name := range path {
		if ns = ns.children[name]; ns == nil {
			return nil, false
		}
	}
	return ns, true
}

// AddDescriptor makes desc and its ancestors available for encoding
// instances of their classes and attaches their bindings. Later
// descriptors for a name replace earlier ones.
func (r *Registry) AddDescriptor(desc *ClassDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for d := desc; d != nil; d = d.Super {
		if d.binding == nil {
			d.binding = r.resolveLocked(d)
		}
		r.descriptors[d.Name] = d
	}
}

// Descriptor returns the descriptor known for name.
func (r *Registry) Descriptor(name string) (*ClassDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[name]
	return d, ok
}

// Descriptors returns every known descriptor sorted by name.
func (r *Registry) Descriptors() []*ClassDescriptor {
	r.mu.RLock()
	descs := make([]*ClassDescriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		descs = append(descs, d)
	}
	r.mu.RUnlock()
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs
}

// BindingFor returns the binding a value is encoded with: the one named
// by its ClassName method if it has one, otherwise the one registered for
// its Go type.
func (r *Registry) BindingFor(value any) (*Binding, bool) {
	if name := className(value); name != "" {
		return r.Lookup(name)
	}
	if value == nil {
		return nil, false
	}
	return r.bindingForType(reflect.TypeOf(value))
}

func (r *Registry) bindingForType(typ reflect.Type) (*Binding, bool) {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byType[typ]
	return b, ok
}

// namespacePath splits a canonical name into namespace segments and a
// leaf type name. A leading "java" or "com" segment is dropped and every
// segment is capitalized. Array names live at the root as JavaArray<sig>.
func namespacePath(name string) ([]string, string) {
	if strings.HasPrefix(name, "[") {
		return nil, "JavaArray" + name[1:]
	}
	var parts []string
	for _, p := range strings.Split(name, ".") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 1 && (parts[0] == "java" || parts[0] == "com") {
		parts = parts[1:]
	}
	if len(parts) == 0 {
		return nil, name
	}
	for i, p := range parts {
		parts[i] = upperCamelCase(p)
	}
	if len(parts) == 1 {
		return nil, parts[0]
	}
	return parts[:len(parts)-1], parts[len(parts)-1]
}

func structFields(typ reflect.Type) map[string][]int {
	fields := make(map[string][]int)
	for _, f := range reflect.VisibleFields(typ) {
		// Skip unexported fields.
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name := f.Tag.Get("javaobs")
		if name == "-" {
			continue
		}
		if name == "" {
			name = lowerCamelCase(f.Name)
		}
		if _, dup := fields[name]; !dup {
			fields[name] = f.Index
		}
	}
	return fields
}

func lowerCamelCase(name string) string {
	runes := []rune(name)
	if len(runes) > 0 {
		runes[0] = unicode.ToLower(runes[0])
	}
	return string(runes)
}

func upperCamelCase(name string) string {
	runes := []rune(name)
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}
