// File: codec/codegen/generate.go
//
// Generate emits one Go source file per Schema: a struct per declaration,
// a consecutively-assigned TypeID starting at base_id, and EncodeType/
// DecodeType methods that satisfy codec.Record by calling straight
// through to the codec.Encoder/codec.Decoder capability set. The
// generated code never reflects over its own fields; every member access
// is a literal line the generator wrote, the same way the rest of this
// library avoids reflection-driven serialization.
package codegen

import (
	"fmt"
	"strings"
)

type memberKind struct {
	scalar   string // bool, i32, i64, f32, f64, string, binary
	array    bool
	goType   string
	elemType string
}

func parseMemberType(raw string) (memberKind, error) {
	t := strings.TrimSpace(raw)
	array := strings.HasSuffix(t, "[]")
	if array {
		t = strings.TrimSuffix(t, "[]")
	}

	goElem, ok := scalarGoType[t]
	if !ok {
		return memberKind{}, fmt.Errorf("codegen: unsupported member type %q", raw)
	}

	k := memberKind{scalar: t, array: array, elemType: goElem}
	if array {
		k.goType = "[]" + goElem
	} else {
		k.goType = goElem
	}
	return k, nil
}

var scalarGoType = map[string]string{
	"bool":   "bool",
	"i32":    "int32",
	"i64":    "int64",
	"f32":    "float32",
	"f64":    "float64",
	"string": "string",
	"binary": "[]byte",
}

var scalarEncodeFunc = map[string]string{
	"bool":   "EncodeBool",
	"i32":    "EncodeI32",
	"i64":    "EncodeI64",
	"f32":    "EncodeF32",
	"f64":    "EncodeF64",
	"string": "EncodeString",
	"binary": "EncodeBinary",
}

var scalarDecodeFunc = map[string]string{
	"bool":   "DecodeBool",
	"i32":    "DecodeI32",
	"i64":    "DecodeI64",
	"f32":    "DecodeF32",
	"f64":    "DecodeF64",
	"string": "DecodeString",
	"binary": "DecodeBinary",
}

// Generate renders schema as a complete Go source file in the given
// package name.
func Generate(schema *Schema, packageName string) (string, error) {
	var b strings.Builder

	if schema.Copyright != "" {
		fmt.Fprintf(&b, "// %s\n", schema.Copyright)
	}
	if schema.Version != "" {
		fmt.Fprintf(&b, "// schema version %s\n", schema.Version)
	}
	fmt.Fprintf(&b, "// Code generated from a codec schema. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", packageName)
	fmt.Fprintf(&b, "import \"github.com/fenwick-labs/netcore/codec\"\n\n")

	for i, decl := range schema.Declarations {
		id := schema.BaseID + int32(i)
		typeName := ExportedTypeName(decl.Name, i)

		members := make([]memberKind, len(decl.Members))
		fieldNames := make([]string, len(decl.Members))
		for j, m := range decl.Members {
			kind, err := parseMemberType(m.Type)
			if err != nil {
				return "", fmt.Errorf("codegen: declaration %q: %w", decl.Name, err)
			}
			members[j] = kind
			fieldNames[j] = ExportedFieldName(m.Name, j)
		}

		writeStruct(&b, typeName, decl, members, fieldNames)
		writeTypeID(&b, typeName, id)
		writeEncode(&b, typeName, id, len(decl.Members), decl, members, fieldNames)
		writeDecode(&b, typeName, decl, members, fieldNames)
	}

	return b.String(), nil
}

func writeStruct(b *strings.Builder, typeName string, decl Declaration, members []memberKind, fieldNames []string) {
	fmt.Fprintf(b, "// %s is generated from the %q declaration.\n", typeName, decl.Name)
	fmt.Fprintf(b, "type %s struct {\n", typeName)
	for j := range decl.Members {
		fmt.Fprintf(b, "\t%s %s\n", fieldNames[j], members[j].goType)
	}
	fmt.Fprintf(b, "}\n\n")
}

func writeTypeID(b *strings.Builder, typeName string, id int32) {
	fmt.Fprintf(b, "func (v *%s) TypeID() int32 { return %d }\n\n", typeName, id)
}

func writeEncode(b *strings.Builder, typeName string, id int32, memberCount int, decl Declaration, members []memberKind, fieldNames []string) {
	fmt.Fprintf(b, "func (v *%s) EncodeType(e codec.Encoder) error {\n", typeName)
	fmt.Fprintf(b, "\tif err := e.OpenType(\"\", %d, %d); err != nil {\n\t\treturn err\n\t}\n", id, memberCount)
	for j, m := range decl.Members {
		name := fieldNames[j]
		k := members[j]
		if !k.array {
			fmt.Fprintf(b, "\tif err := e.%s(%q, v.%s); err != nil {\n\t\treturn err\n\t}\n", scalarEncodeFunc[k.scalar], m.Name, name)
			continue
		}
		fmt.Fprintf(b, "\tif err := e.OpenArray(%q, len(v.%s)); err != nil {\n\t\treturn err\n\t}\n", m.Name, name)
		fmt.Fprintf(b, "\tfor _, elem := range v.%s {\n", name)
		fmt.Fprintf(b, "\t\tif err := e.%s(\"\", elem); err != nil {\n\t\t\treturn err\n\t\t}\n", scalarEncodeFunc[k.scalar])
		fmt.Fprintf(b, "\t}\n")
		fmt.Fprintf(b, "\tif err := e.Close(); err != nil {\n\t\treturn err\n\t}\n")
	}
	fmt.Fprintf(b, "\treturn e.Close()\n}\n\n")
}

func writeDecode(b *strings.Builder, typeName string, decl Declaration, members []memberKind, fieldNames []string) {
	fmt.Fprintf(b, "func (v *%s) DecodeType(d codec.Decoder) error {\n", typeName)
	fmt.Fprintf(b, "\tif _, _, err := d.OpenType(\"\"); err != nil {\n\t\treturn err\n\t}\n")
	for j, m := range decl.Members {
		name := fieldNames[j]
		k := members[j]
		if !k.array {
			fmt.Fprintf(b, "\t{\n\t\tval, err := d.%s(%q)\n\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n\t\tv.%s = val\n\t}\n",
				scalarDecodeFunc[k.scalar], m.Name, name)
			continue
		}
		fmt.Fprintf(b, "\t{\n\t\tsize, err := d.OpenArray(%q)\n\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n", m.Name)
		fmt.Fprintf(b, "\t\telems := make(%s, 0, size)\n", k.goType)
		fmt.Fprintf(b, "\t\tfor i := 0; i < size; i++ {\n")
		fmt.Fprintf(b, "\t\t\tval, err := d.%s(\"\")\n\t\t\tif err != nil {\n\t\t\t\treturn err\n\t\t\t}\n", scalarDecodeFunc[k.scalar])
		fmt.Fprintf(b, "\t\t\telems = append(elems, val)\n\t\t}\n")
		fmt.Fprintf(b, "\t\tif err := d.Close(); err != nil {\n\t\t\treturn err\n\t\t}\n")
		fmt.Fprintf(b, "\t\tv.%s = elems\n\t}\n", name)
	}
	fmt.Fprintf(b, "\treturn d.Close()\n}\n\n")
}
