// Command kernelgen generates the type-specialized sorting kernels.
//
// Usage:
//
//	kernelgen -out ./kernels
//
// Or via go:generate in package kernels:
//
//	//go:generate go run ../cmd/kernelgen -out .
//
// It writes two files:
//  1. zz_kernels.go: the entry point name table and the host kernel table,
//     one instantiation of each generic kernel per scalar type.
//  2. sorting.wgsl: WGSL compute entry points for the types WGSL can
//     store in a buffer (i32, u32, f32).
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

var (
	outputDir = flag.String("out", ".", "Output directory (the kernels package)")
	pkgName   = flag.String("pkg", "kernels", "Package name of the generated Go file")
	check     = flag.Bool("check", false, "Exit non-zero if the files on disk differ from the generated ones")
)

func main() {
	flag.Parse()

	files, err := Render(*pkgName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	stale := false
	for _, f := range files {
		path := filepath.Join(*outputDir, f.Name)
		if *check {
			old, err := os.ReadFile(path)
			if err != nil || string(old) != string(f.Data) {
				fmt.Fprintf(os.Stderr, "%s is out of date\n", path)
				stale = true
			}
			continue
		}
		if err := os.WriteFile(path, f.Data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", path)
	}
	if stale {
		os.Exit(1)
	}
}
