// Package descfile reads and writes class descriptors as YAML or
// JSON-with-comments documents, for supplying UIDs of classes that were
// never seen in a sample stream.
package descfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	javaobs "github.com/lujjjh/go-javaobs"
)

// Format selects the document syntax.
type Format int

const (
	YAML Format = iota
	JSONC
)

// FormatOf picks a format from a file extension. Unknown extensions are
// read as YAML, which also accepts plain JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return JSONC
	}
	return YAML
}

// Document is the top-level shape of a descriptor file.
type Document struct {
	Classes []Class `yaml:"classes" json:"classes"`
}

// Class is one class descriptor entry.
type Class struct {
	Name   string   `yaml:"name" json:"name"`
	UID    UID      `yaml:"uid" json:"uid"`
	Flags  []string `yaml:"flags,flow,omitempty" json:"flags,omitempty"`
	Fields []Field  `yaml:"fields,omitempty" json:"fields,omitempty"`
	Super  string   `yaml:"super,omitempty" json:"super,omitempty"`
}

// Field is one entry of a class's field table. Class holds the type
// signature of object and array fields.
type Field struct {
	Name  string `yaml:"name" json:"name"`
	Type  string `yaml:"type" json:"type"`
	Class string `yaml:"class,omitempty" json:"class,omitempty"`
}

// UID is a serialVersionUID written as a decimal or 0x-prefixed hex
// string. In JSON it may also be a bare number.
type UID string

func (u *UID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = UID(s)
		return nil
	}
	*u = UID(data)
	return nil
}

// Parse returns the wire form of u.
func (u UID) Parse() (javaobs.UID, error) {
	s := strings.TrimSpace(string(u))
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		v, err := strconv.ParseUint(rest, 16, 64)
		if err != nil {
			return javaobs.UID{}, fmt.Errorf("uid %q: %w", s, err)
		}
		return javaobs.UIDFromInt64(int64(v)), nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return javaobs.UID{}, fmt.Errorf("uid %q: %w", s, err)
	}
	return javaobs.UIDFromInt64(v), nil
}

var flagNames = []struct {
	name string
	flag byte
}{
	{"serializable", javaobs.ScSerializable},
	{"write_method", javaobs.ScWriteMethod},
	{"externalizable", javaobs.ScExternalizable},
	{"block_data", javaobs.ScBlockData},
	{"enum", javaobs.ScEnum},
}

func parseFlags(names []string) (byte, error) {
	var flags byte
next:
	for _, name := range names {
		for _, f := range flagNames {
			if strings.EqualFold(name, f.name) {
				flags |= f.flag
				continue next
			}
		}
		return 0, fmt.Errorf("unknown flag %q", name)
	}
	return flags, nil
}

func formatFlags(flags byte) []string {
	var names []string
	for _, f := range flagNames {
		if flags&f.flag != 0 {
			names = append(names, f.name)
		}
	}
	return names
}

var typeNames = map[string]javaobs.PrimitiveType{
	"byte":    javaobs.PrimByte,
	"char":    javaobs.PrimChar,
	"double":  javaobs.PrimDouble,
	"float":   javaobs.PrimFloat,
	"int":     javaobs.PrimInt,
	"long":    javaobs.PrimLong,
	"short":   javaobs.PrimShort,
	"boolean": javaobs.PrimBool,
	"object":  javaobs.PrimObject,
	"array":   javaobs.PrimArray,
}

// parseType accepts a type name or its one-letter wire code.
func parseType(s string) (javaobs.PrimitiveType, error) {
	if t, ok := typeNames[strings.ToLower(s)]; ok {
		return t, nil
	}
	if len(s) == 1 && javaobs.PrimitiveType(s[0]).Valid() {
		return javaobs.PrimitiveType(s[0]), nil
	}
	return 0, fmt.Errorf("unknown field type %q", s)
}

// Decode parses a document in the given format.
func Decode(r io.Reader, format Format) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var doc Document
	switch format {
	case JSONC:
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("descfile: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && err != io.EOF {
			return nil, fmt.Errorf("descfile: %w", err)
		}
	}
	return &doc, nil
}

// Descriptors builds the class descriptors of doc. Superclasses are
// looked up in the document first, then in reg when it is not nil.
func (doc *Document) Descriptors(reg *javaobs.Registry) ([]*javaobs.ClassDescriptor, error) {
	byName := make(map[string]*javaobs.ClassDescriptor, len(doc.Classes))
	descs := make([]*javaobs.ClassDescriptor, 0, len(doc.Classes))
	for _, c := range doc.Classes {
		if c.Name == "" {
			return nil, errors.New("descfile: class without a name")
		}
		if _, dup := byName[c.Name]; dup {
			return nil, fmt.Errorf("descfile: class %s listed twice", c.Name)
		}
		uid, err := c.UID.Parse()
		if err != nil {
			return nil, fmt.Errorf("descfile: class %s: %w", c.Name, err)
		}
		flags, err := parseFlags(c.Flags)
		if err != nil {
			return nil, fmt.Errorf("descfile: class %s: %w", c.Name, err)
		}
		desc := javaobs.NewClassDescriptor(c.Name, uid, flags)
		for _, f := range c.Fields {
			typ, err := parseType(f.Type)
			if err != nil {
				return nil, fmt.Errorf("descfile: field %s.%s: %w", c.Name, f.Name, err)
			}
			if typ.IsReference() && f.Class == "" {
				return nil, fmt.Errorf("descfile: field %s.%s needs a class signature", c.Name, f.Name)
			}
			if !typ.IsReference() {
				f.Class = ""
			}
			desc.AddField(javaobs.FieldDescriptor{Name: f.Name, Type: typ, ClassName: f.Class})
		}
		byName[c.Name] = desc
		descs = append(descs, desc)
	}
	for i, c := range doc.Classes {
		if c.Super == "" {
			continue
		}
		super, ok := byName[c.Super]
		if !ok && reg != nil {
			super, ok = reg.Descriptor(c.Super)
		}
		if !ok {
			return nil, fmt.Errorf("descfile: class %s: unknown superclass %s", c.Name, c.Super)
		}
		descs[i].Super = super
	}
	for _, desc := range descs {
		seen := make(map[*javaobs.ClassDescriptor]bool)
		for d := desc; d != nil; d = d.Super {
			if seen[d] {
				return nil, fmt.Errorf("descfile: class %s has a cyclic superclass chain", desc.Name)
			}
			seen[d] = true
		}
	}
	return descs, nil
}

// Load decodes a document and builds its descriptors.
func Load(r io.Reader, format Format, reg *javaobs.Registry) ([]*javaobs.ClassDescriptor, error) {
	doc, err := Decode(r, format)
	if err != nil {
		return nil, err
	}
	return doc.Descriptors(reg)
}

// LoadFile loads the descriptor file at path and adds every descriptor
// to reg. A nil reg only parses the file.
func LoadFile(path string, reg *javaobs.Registry) ([]*javaobs.ClassDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	descs, err := Load(f, FormatOf(path), reg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if reg != nil {
		for _, desc := range descs {
			reg.AddDescriptor(desc)
		}
	}
	return descs, nil
}

// FromDescriptors builds a document listing descs in order.
func FromDescriptors(descs []*javaobs.ClassDescriptor) *Document {
	doc := &Document{Classes: make([]Class, 0, len(descs))}
	for _, desc := range descs {
		c := Class{
			Name:  desc.Name,
			UID:   UID("0x" + desc.UID.String()),
			Flags: formatFlags(desc.Flags),
		}
		for _, f := range desc.Fields {
			c.Fields = append(c.Fields, Field{Name: f.Name, Type: f.Type.String(), Class: f.ClassName})
		}
		if desc.Super != nil {
			c.Super = desc.Super.Name
		}
		doc.Classes = append(doc.Classes, c)
	}
	return doc
}

// Dump writes descs as a YAML descriptor file.
func Dump(w io.Writer, descs []*javaobs.ClassDescriptor) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(FromDescriptors(descs)); err != nil {
		return err
	}
	return enc.Close()
}
