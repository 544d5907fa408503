package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"kifuconv/pkg/kifu"

	"github.com/inhies/go-bytesize"
)

type result struct {
	path    string
	read    int64
	written int
	err     error
}

func main() {
	configPath := flag.String("config", "", "path to config.json (default: search upward from cwd)")
	to := flag.String("to", "kif", "output format: csa, kif, ki2, jkf or usi")
	inputPath := flag.String("input", "", "input directory for batch conversion")
	outputDir := flag.String("output", "", "output directory for batch conversion")
	processNum := flag.Int("process-num", 4, "number of parallel workers")
	shiftJIS := flag.Bool("shift-jis", false, "write KIF and KI2 output in Shift-JIS")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["to"] {
		cfg.To = *to
	}
	if set["process-num"] {
		cfg.Workers = *processNum
	}
	if set["shift-jis"] {
		cfg.ShiftJIS = *shiftJIS
	}

	format, err := kifu.ParseFormat(cfg.To)
	if err != nil {
		fatal(err)
	}

	if *inputPath == "" {
		if flag.NArg() == 0 {
			fatal(fmt.Errorf("specify kifu files or -input with -output"))
		}
		for _, path := range flag.Args() {
			if err := convertToStdout(path, format, cfg.ShiftJIS); err != nil {
				fatal(fmt.Errorf("%s: %w", path, err))
			}
		}
		return
	}
	if *outputDir == "" {
		fatal(fmt.Errorf("-output is required with -input"))
	}
	runBatch(*inputPath, *outputDir, format, cfg)
}

func loadConfig(path string) (kifu.Config, error) {
	if path != "" {
		return kifu.LoadConfig(path)
	}
	return kifu.FindConfig()
}

func convertToStdout(path string, format kifu.Format, shiftJIS bool) error {
	rec, err := kifu.LoadFile(path)
	if err != nil {
		return err
	}
	text, err := kifu.Render(rec, format)
	if err != nil {
		return err
	}
	data, err := kifu.EncodeText(text, shiftJIS && (format == kifu.FormatKIF || format == kifu.FormatKI2))
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runBatch(inputDir, outputDir string, format kifu.Format, cfg kifu.Config) {
	files, err := kifu.CollectKifu(inputDir)
	if err != nil {
		fatal(err)
	}
	if len(files) == 0 {
		fatal(fmt.Errorf("no kifu files found in %s", inputDir))
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}

	jobs := make(chan string)
	results := make(chan result, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				results <- convertFile(path, inputDir, outputDir, format, cfg.ShiftJIS)
			}
		}()
	}
	go func() {
		for _, path := range files {
			jobs <- path
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var read, written bytesize.ByteSize
	converted, failed := 0, 0
	for res := range results {
		if res.err != nil {
			fmt.Fprintf(os.Stderr, "failed to convert %s: %v\n", res.path, res.err)
			failed++
			continue
		}
		converted++
		read += bytesize.ByteSize(res.read)
		written += bytesize.ByteSize(res.written)
	}

	fmt.Printf("input dir: %s\n", inputDir)
	fmt.Printf("output dir: %s (%s)\n", outputDir, format)
	fmt.Printf("converted files: %d\n", converted)
	fmt.Printf("failed files: %d\n", failed)
	fmt.Printf("read: %s written: %s\n", read, written)
	if failed > 0 {
		os.Exit(1)
	}
}

func convertFile(path, inputDir, outputDir string, format kifu.Format, shiftJIS bool) result {
	res := result{path: path}
	info, err := os.Stat(path)
	if err != nil {
		res.err = err
		return res
	}
	res.read = info.Size()
	rec, err := kifu.LoadFile(path)
	if err != nil {
		res.err = err
		return res
	}
	rel, err := filepath.Rel(inputDir, path)
	if err != nil {
		res.err = err
		return res
	}
	res.written, res.err = kifu.WriteFile(filepath.Join(outputDir, outputName(rel, format)), rec, shiftJIS)
	return res
}

// outputName swaps the kifu extension of rel, dropping any .bz2.
func outputName(rel string, format kifu.Format) string {
	rel = strings.TrimSuffix(rel, ".bz2")
	return strings.TrimSuffix(rel, filepath.Ext(rel)) + format.Ext()
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
