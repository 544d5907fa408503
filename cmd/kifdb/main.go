package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"kifuconv/pkg/kifu"

	"github.com/inhies/go-bytesize"
)

type plyStats struct {
	binSize int
	min     int
	max     int
	total   int
	games   int
	bins    map[int]int
}

func newPlyStats(binSize int) *plyStats {
	return &plyStats{binSize: binSize, bins: make(map[int]int)}
}

func (ps *plyStats) Add(ply int) {
	if ps.games == 0 || ply < ps.min {
		ps.min = ply
	}
	if ply > ps.max {
		ps.max = ply
	}
	ps.games++
	ps.total += ply
	ps.bins[(ply/ps.binSize)*ps.binSize]++
}

type loaded struct {
	row  kifu.RecordRow
	size int64
	ok   bool
}

func main() {
	configPath := flag.String("config", "", "path to config.json (default: search upward from cwd)")
	kifDir := flag.String("kif-dir", "", "input directory of kifu files")
	parquetPath := flag.String("parquet", "", "parquet dataset to write (with -kif-dir) or read (with -read)")
	read := flag.Bool("read", false, "summarize an existing parquet dataset")
	binSize := flag.Int("bin-size", 20, "ply histogram bin size")
	processNum := flag.Int("process-num", 4, "number of parallel workers")
	flag.Parse()

	if *binSize <= 0 {
		fatal(fmt.Errorf("bin-size must be > 0"))
	}
	if *parquetPath == "" {
		fatal(fmt.Errorf("-parquet is required"))
	}
	if *read == (*kifDir != "") {
		fatal(fmt.Errorf("specify exactly one of -kif-dir or -read"))
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "process-num" {
			cfg.Workers = *processNum
		}
	})

	if *read {
		rows, err := kifu.ReadParquet(*parquetPath, cfg.ParquetParallel)
		if err != nil {
			fatal(err)
		}
		info, err := os.Stat(*parquetPath)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("input parquet: %s (%s)\n", *parquetPath, bytesize.ByteSize(info.Size()))
		summarize(rows, *binSize)
		return
	}

	rows, input, failed := build(*kifDir, *parquetPath, cfg)
	info, err := os.Stat(*parquetPath)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("kif dir: %s (%s)\n", *kifDir, input)
	fmt.Printf("output parquet: %s (%s)\n", *parquetPath, bytesize.ByteSize(info.Size()))
	fmt.Printf("failed files: %d\n", failed)
	summarize(rows, *binSize)
}

func loadConfig(path string) (kifu.Config, error) {
	if path != "" {
		return kifu.LoadConfig(path)
	}
	return kifu.FindConfig()
}

// build converts every kifu under dir and streams the rows to the
// parquet writer. The rows are also returned for the summary.
func build(dir, outputPath string, cfg kifu.Config) ([]kifu.RecordRow, bytesize.ByteSize, int) {
	files, err := kifu.CollectKifu(dir)
	if err != nil {
		fatal(err)
	}
	if len(files) == 0 {
		fatal(fmt.Errorf("no kifu files found in %s", dir))
	}
	if d := filepath.Dir(outputPath); d != "." {
		if err := os.MkdirAll(d, 0o755); err != nil {
			fatal(err)
		}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}

	jobs := make(chan string)
	loadedCh := make(chan loaded, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				loadedCh <- loadRow(dir, path)
			}
		}()
	}
	go func() {
		for _, path := range files {
			jobs <- path
		}
		close(jobs)
		wg.Wait()
		close(loadedCh)
	}()

	results := make(chan kifu.RecordRow, workers)
	writeErr := make(chan error, 1)
	go func() {
		writeErr <- kifu.WriteParquet(outputPath, results, cfg.ParquetParallel)
	}()

	var rows []kifu.RecordRow
	var input bytesize.ByteSize
	failed := 0
	for l := range loadedCh {
		if !l.ok {
			failed++
			continue
		}
		input += bytesize.ByteSize(l.size)
		rows = append(rows, l.row)
		results <- l.row
	}
	close(results)
	if err := <-writeErr; err != nil {
		fatal(err)
	}
	return rows, input, failed
}

func loadRow(dir, path string) loaded {
	rec, err := kifu.LoadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse %s: %v\n", path, err)
		return loaded{}
	}
	id, err := filepath.Rel(dir, path)
	if err != nil {
		id = path
	}
	row, err := kifu.RecordToRow(filepath.ToSlash(id), rec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to convert %s: %v\n", path, err)
		return loaded{}
	}
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to stat %s: %v\n", path, err)
		return loaded{}
	}
	return loaded{row: row, size: info.Size(), ok: true}
}

func summarize(rows []kifu.RecordRow, binSize int) {
	plies := newPlyStats(binSize)
	specials := map[string]int{}
	presets := map[string]int{}
	forks := 0
	for _, row := range rows {
		plies.Add(int(row.MoveCount))
		presets[row.Preset]++
		for _, step := range row.Steps {
			if step.Branch != 0 {
				if step.Index == step.Anchor {
					forks++
				}
				continue
			}
			if step.Special != "" {
				specials[step.Special]++
			}
		}
	}

	fmt.Printf("games: %d\n", len(rows))
	fmt.Printf("forks: %d\n", forks)
	if plies.games > 0 {
		fmt.Printf("plies: min=%d max=%d avg=%.1f\n", plies.min, plies.max, float64(plies.total)/float64(plies.games))
	}
	fmt.Printf("presets: %s\n", formatCounts(presets))
	fmt.Printf("specials: %s\n", formatCounts(specials))
	fmt.Printf("ply distribution (bin size=%d):\n", plies.binSize)
	keys := make([]int, 0, len(plies.bins))
	for key := range plies.bins {
		keys = append(keys, key)
	}
	sort.Ints(keys)
	for _, start := range keys {
		end := start + plies.binSize - 1
		fmt.Printf("%d-%d,%d\n", start, end, plies.bins[start])
	}
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
