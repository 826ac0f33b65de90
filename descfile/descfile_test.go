package descfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	javaobs "github.com/lujjjh/go-javaobs"
)

const yamlDoc = `
classes:
  - name: com.example.Point
    uid: "0x1122334455667788"
    flags: [serializable]
    super: com.example.Shape
    fields:
      - {name: x, type: int}
      - {name: y, type: I}
      - {name: label, type: object, class: Ljava/lang/String;}
  - name: com.example.Shape
    uid: -1
    flags: [serializable, write_method]
`

const jsoncDoc = `{
  // Arrays are plain class entries.
  "classes": [
    {"name": "[I", "uid": 5601910553208910565, "flags": ["serializable"]},
    {"name": "[J", "uid": "0x782004b512b17593", "flags": ["serializable"],},
  ],
}`

func TestLoad_YAML(t *testing.T) {
	descs, err := Load(strings.NewReader(yamlDoc), YAML, nil)
	require.NoError(t, err)
	require.Len(t, descs, 2)

	point, shape := descs[0], descs[1]
	assert.Equal(t, "com.example.Point", point.Name)
	assert.Equal(t, "Point", point.SimpleName)
	assert.Equal(t, javaobs.UIDFromInt64(0x1122334455667788), point.UID)
	assert.Equal(t, javaobs.ScSerializable, point.Flags)
	assert.Same(t, shape, point.Super)
	assert.Equal(t, []javaobs.FieldDescriptor{
		{Name: "x", Type: javaobs.PrimInt},
		{Name: "y", Type: javaobs.PrimInt},
		{Name: "label", Type: javaobs.PrimObject, ClassName: "Ljava/lang/String;"},
	}, point.Fields)

	assert.Equal(t, int64(-1), shape.UID.Int64())
	assert.Equal(t, javaobs.ScSerializable|javaobs.ScWriteMethod, shape.Flags)
}

func TestLoad_JSONC(t *testing.T) {
	descs, err := Load(strings.NewReader(jsoncDoc), JSONC, nil)
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.Equal(t, int64(5601910553208910565), descs[0].UID.Int64())
	assert.Equal(t, javaobs.PrimInt, descs[0].ElementType)
	assert.Equal(t, "782004b512b17593", descs[1].UID.String())
	assert.Equal(t, javaobs.PrimLong, descs[1].ElementType)
}

func TestLoad_SuperFromRegistry(t *testing.T) {
	reg := javaobs.NewRegistry()
	base := javaobs.NewClassDescriptor("Base", javaobs.UID{}, javaobs.ScSerializable)
	reg.AddDescriptor(base)

	doc := "classes:\n  - {name: Child, uid: 1, flags: [serializable], super: Base}\n"
	descs, err := Load(strings.NewReader(doc), YAML, reg)
	require.NoError(t, err)
	assert.Same(t, base, descs[0].Super)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad uid", "classes: [{name: A, uid: zz}]"},
		{"hex overflow", "classes: [{name: A, uid: '0x1ffffffffffffffff'}]"},
		{"bad flag", "classes: [{name: A, uid: 1, flags: [volatile]}]"},
		{"bad type", "classes: [{name: A, uid: 1, fields: [{name: f, type: Q}]}]"},
		{"missing signature", "classes: [{name: A, uid: 1, fields: [{name: f, type: object}]}]"},
		{"missing super", "classes: [{name: A, uid: 1, super: B}]"},
		{"cycle", "classes: [{name: A, uid: 1, super: B}, {name: B, uid: 2, super: A}]"},
		{"duplicate", "classes: [{name: A, uid: 1}, {name: A, uid: 2}]"},
		{"no name", "classes: [{uid: 1}]"},
		{"unknown key", "classes: [{name: A, uid: 1, colour: red}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc), YAML, nil)
			assert.Error(t, err)
		})
	}
}

func TestLoad_Empty(t *testing.T) {
	descs, err := Load(strings.NewReader(""), YAML, nil)
	require.NoError(t, err)
	assert.Empty(t, descs)
}

func TestDumpLoad(t *testing.T) {
	descs, err := Load(strings.NewReader(yamlDoc), YAML, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, descs))
	assert.Contains(t, buf.String(), `uid: "0x1122334455667788"`)
	assert.Contains(t, buf.String(), "flags: [serializable, write_method]")

	again, err := Load(&buf, YAML, nil)
	require.NoError(t, err)
	assert.Equal(t, FromDescriptors(descs), FromDescriptors(again))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arrays.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(jsoncDoc), 0o644))

	reg := javaobs.NewRegistry()
	_, err := LoadFile(path, reg)
	require.NoError(t, err)
	desc, ok := reg.Descriptor("[J")
	require.True(t, ok)
	assert.Equal(t, javaobs.UIDFromInt64(0x782004b512b17593), desc.UID)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"), reg)
	assert.Error(t, err)

	descs, err := LoadFile(path, nil)
	require.NoError(t, err)
	assert.Len(t, descs, 2)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, JSONC, FormatOf("a.JSON"))
	assert.Equal(t, JSONC, FormatOf("a.jsonc"))
	assert.Equal(t, YAML, FormatOf("a.yml"))
	assert.Equal(t, YAML, FormatOf("a"))
}
