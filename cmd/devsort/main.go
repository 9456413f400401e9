// Command devsort sorts random arrays on the device and verifies them.
//
//	devsort -type f32 -n 4096 -arrays 4
//	devsort -backend webgpu -type i32 -desc
//	devsort -probe
//
// Each array gets its own stream; the arrays are uploaded, sorted and
// checked concurrently. Configuration not given by flags comes from the
// DEVSORT_* environment variables.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openfluke/devsort/detector"
	"github.com/openfluke/devsort/gpu"
	"github.com/openfluke/devsort/kernels"
)

var (
	typeName = flag.String("type", "f32", "Element type: "+typeList())
	count    = flag.Int("n", 1024, "Elements per array")
	arrays   = flag.Int("arrays", 1, "Arrays sorted concurrently, one stream each")
	desc     = flag.Bool("desc", false, "Sort descending")
	seed     = flag.Uint64("seed", 1, "Random seed")
	backend  = flag.String("backend", "", "Backend: host, webgpu or empty for auto (overrides "+gpu.EnvBackend+")")
	workers  = flag.Int("workers", 0, "Host backend batches per launch (overrides "+gpu.EnvWorkers+")")
	probe    = flag.Bool("probe", false, "Print the device report as JSON and exit")
	verbose  = flag.Bool("v", false, "Debug logging")
)

func typeList() string {
	names := make([]string, 0, len(kernels.TypeTags()))
	for _, tag := range kernels.TypeTags() {
		names = append(names, tag.String())
	}
	return strings.Join(names, ", ")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := gpu.ConfigFromEnv()
	if err != nil {
		return err
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *verbose {
		cfg.Logger = gpu.NewTextLogger(slog.LevelDebug)
	}

	ctx, err := gpu.NewContext(cfg)
	if err != nil {
		return err
	}
	defer ctx.Close()

	if *probe {
		out, err := detector.JSON(ctx.Report())
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	if *count < 0 || *arrays < 1 {
		return fmt.Errorf("need -n >= 0 and -arrays >= 1")
	}
	j := job{n: *count, arrays: *arrays, descending: *desc, seed: *seed}

	fmt.Printf("devsort: backend=%s device=%q type=%s n=%d arrays=%d desc=%v\n",
		ctx.Backend(), ctx.Report().Name, *typeName, j.n, j.arrays, j.descending)

	var results []result
	switch *typeName {
	case "i8":
		results, err = sortRandom[int8](ctx, j)
	case "i16":
		results, err = sortRandom[int16](ctx, j)
	case "i32":
		results, err = sortRandom[int32](ctx, j)
	case "i64":
		results, err = sortRandom[int64](ctx, j)
	case "u8":
		results, err = sortRandom[uint8](ctx, j)
	case "u16":
		results, err = sortRandom[uint16](ctx, j)
	case "u32":
		results, err = sortRandom[uint32](ctx, j)
	case "u64":
		results, err = sortRandom[uint64](ctx, j)
	case "f32":
		results, err = sortRandom[float32](ctx, j)
	case "f64":
		results, err = sortRandom[float64](ctx, j)
	default:
		return fmt.Errorf("unknown type %q (want one of %s)", *typeName, typeList())
	}
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		mark := "✓"
		if !r.ok() {
			mark = "✗"
			failed++
		}
		fmt.Printf("  %s array %d: device check=%v host check=%v  %v\n", mark, r.index, r.deviceSorted, r.hostSorted, r.elapsed)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d arrays not sorted", failed, len(results))
	}
	return nil
}
