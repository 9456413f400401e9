package main

import (
	"bytes"
	"fmt"
	"go/format"
	"text/template"
)

// scalarType is one specialization target.
type scalarType struct {
	Tag  string // TypeTag constant in package kernels
	Name string // canonical short name, suffix of every entry point
	Go   string // Go type argument
	WGSL string // WGSL element type; empty when WGSL cannot store it
}

// kernelOp is one generic kernel.
type kernelOp struct {
	Const string // Op constant in package kernels
	Name  string // entry point prefix
	Func  string // generic Go implementation
}

var scalarTypes = []scalarType{
	{Tag: "I8", Name: "i8", Go: "int8"},
	{Tag: "I16", Name: "i16", Go: "int16"},
	{Tag: "I32", Name: "i32", Go: "int32", WGSL: "i32"},
	{Tag: "I64", Name: "i64", Go: "int64"},
	{Tag: "U8", Name: "u8", Go: "uint8"},
	{Tag: "U16", Name: "u16", Go: "uint16"},
	{Tag: "U32", Name: "u32", Go: "uint32", WGSL: "u32"},
	{Tag: "U64", Name: "u64", Go: "uint64"},
	{Tag: "F32", Name: "f32", Go: "float32", WGSL: "f32"},
	{Tag: "F64", Name: "f64", Go: "float64"},
}

var kernelOps = []kernelOp{
	{Const: "OpSortEven", Name: "sort_even", Func: "sortEven"},
	{Const: "OpSortOdd", Name: "sort_odd", Func: "sortOdd"},
	{Const: "OpCheckSorted", Name: "check_sorted", Func: "checkSorted"},
}

// File is one generated output.
type File struct {
	Name string
	Data []byte
}

type templateData struct {
	Package     string
	Types       []scalarType
	DeviceTypes []scalarType
	Ops         []kernelOp
}

// Render produces the generated Go table and WGSL source.
func Render(pkg string) ([]File, error) {
	data := templateData{Package: pkg, Types: scalarTypes, Ops: kernelOps}
	for _, t := range scalarTypes {
		if t.WGSL != "" {
			data.DeviceTypes = append(data.DeviceTypes, t)
		}
	}

	var goBuf bytes.Buffer
	if err := goTemplate.Execute(&goBuf, data); err != nil {
		return nil, fmt.Errorf("go template: %w", err)
	}
	formatted, err := format.Source(goBuf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated Go: %w", err)
	}

	var wgslBuf bytes.Buffer
	if err := wgslTemplate.Execute(&wgslBuf, data); err != nil {
		return nil, fmt.Errorf("wgsl template: %w", err)
	}

	return []File{
		{Name: "zz_kernels.go", Data: formatted},
		{Name: "sorting.wgsl", Data: wgslBuf.Bytes()},
	}, nil
}

var goTemplate = template.Must(template.New("go").Parse(`// Code generated by kernelgen. DO NOT EDIT.

package {{.Package}}

import "github.com/openfluke/devsort/gpu"

var symbolNames = [numOps][numTypes]string{
{{- range $op := .Ops}}
	{{$op.Const}}: {
{{- range $t := $.Types}}
		{{$t.Tag}}: "{{$op.Name}}_{{$t.Name}}",
{{- end}}
	},
{{- end}}
}

var hostKernels = [numOps][numTypes]gpu.HostKernel{
{{- range $op := .Ops}}
	{{$op.Const}}: {
{{- range $t := $.Types}}
		{{$t.Tag}}: {{$op.Func}}[{{$t.Go}}],
{{- end}}
	},
{{- end}}
}

// deviceEntries are the entry points defined in sorting.wgsl.
var deviceEntries = []string{
{{- range $t := .DeviceTypes}}{{range $op := $.Ops}}
	"{{$op.Name}}_{{$t.Name}}",
{{- end}}{{end}}
}
`))

var wgslTemplate = template.Must(template.New("wgsl").Parse(`// Code generated by kernelgen. DO NOT EDIT.
//
// Compare-swap and order-check kernels. Each workgroup is one invocation
// handling one adjacent pair; the pairs of a dispatch are disjoint.

struct SortParams {
    ascending: u32,
    pad0: u32,
    pad1: u32,
    pad2: u32,
}

struct CheckParams {
    size: u32,
    descending: u32,
    pad0: u32,
    pad1: u32,
}
{{range .DeviceTypes}}
// ---- {{.Name}} ----

@group(0) @binding(0) var<storage, read_write> sort_arr_{{.Name}}: array<{{.WGSL}}>;
@group(0) @binding(1) var<uniform> sort_params_{{.Name}}: SortParams;

fn compare_swap_{{.Name}}(fst: u32, sec: u32) {
    if (sec >= arrayLength(&sort_arr_{{.Name}})) {
        return;
    }
    let a = sort_arr_{{.Name}}[fst];
    let b = sort_arr_{{.Name}}[sec];
    let ascending = sort_params_{{.Name}}.ascending != 0u;
    if ((ascending && a > b) || (!ascending && a < b)) {
        sort_arr_{{.Name}}[fst] = b;
        sort_arr_{{.Name}}[sec] = a;
    }
}

@compute @workgroup_size(1)
fn sort_even_{{.Name}}(@builtin(workgroup_id) wg: vec3<u32>) {
    compare_swap_{{.Name}}(wg.x * 2u, wg.x * 2u + 1u);
}

@compute @workgroup_size(1)
fn sort_odd_{{.Name}}(@builtin(workgroup_id) wg: vec3<u32>) {
    compare_swap_{{.Name}}(wg.x * 2u + 1u, wg.x * 2u + 2u);
}

@group(0) @binding(0) var<storage, read> check_arr_{{.Name}}: array<{{.WGSL}}>;
@group(0) @binding(1) var<storage, read_write> check_flags_{{.Name}}: array<u32>;
@group(0) @binding(2) var<uniform> check_params_{{.Name}}: CheckParams;

@compute @workgroup_size(1)
fn check_sorted_{{.Name}}(@builtin(workgroup_id) wg: vec3<u32>) {
    let i = wg.x;
    if (i >= check_params_{{.Name}}.size) {
        return;
    }
    let a = check_arr_{{.Name}}[i];
    let b = check_arr_{{.Name}}[i + 1u];
    var ok = a <= b;
    if (check_params_{{.Name}}.descending != 0u) {
        ok = a >= b;
    }
    check_flags_{{.Name}}[i] = select(0u, 1u, ok);
}
{{end}}`))
