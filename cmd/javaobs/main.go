// javaobs inspects Java object serialization streams: it renders the
// decoded object graph, checks that re-encoding reproduces the input
// byte for byte, and extracts the class descriptors a stream carries so
// they can be reused to write new streams.
//
// Input files may be gzip, zstd or lz4 compressed; "-" reads standard
// input.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	javaobs "github.com/lujjjh/go-javaobs"
	"github.com/lujjjh/go-javaobs/descfile"
	"github.com/lujjjh/go-javaobs/internal/source"
	"github.com/lujjjh/go-javaobs/internal/tree"
	"github.com/lujjjh/go-javaobs/javautil"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

// mismatchError reports a failed round trip. The details have already
// been printed.
type mismatchError struct{ files int }

func (e *mismatchError) Error() string {
	return fmt.Sprintf("%d file(s) did not round-trip", e.files)
}

func (e *mismatchError) ExitCode() int { return 1 }

type config struct {
	format      tree.Format
	descriptors []string
	verbose     bool
	digest      bool

	stdout io.Writer
	stderr io.Writer
	logger *zap.Logger
}

func run(args []string, stdout, stderr io.Writer) error {
	cfg := config{stdout: stdout, stderr: stderr}
	var format string

	flagSet := pflag.NewFlagSet("javaobs", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&format, "format", "f", string(tree.YAML), "dump output format: yaml, json or cbor")
	flagSet.StringSliceVarP(&cfg.descriptors, "descriptors", "d", nil, "descriptor file(s) to load before decoding (YAML or JSONC)")
	flagSet.BoolVarP(&cfg.verbose, "verbose", "v", false, "log decoder and encoder activity to stderr")
	flagSet.BoolVar(&cfg.digest, "digest", false, "print the BLAKE3 digest of each decompressed stream")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet, stderr)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet, stderr)
		return nil
	}
	rest := flagSet.Args()
	if len(rest) < 2 {
		printHelp(flagSet, stderr)
		return errors.New("expected a command and at least one file")
	}

	var err error
	if cfg.format, err = tree.ParseFormat(format); err != nil {
		return err
	}
	cfg.logger = zap.NewNop()
	if cfg.verbose {
		if cfg.logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer cfg.logger.Sync() //nolint:errcheck
	}

	reg, err := cfg.registry()
	if err != nil {
		return err
	}

	command, files := rest[0], rest[1:]
	switch command {
	case "dump":
		return cfg.dump(reg, files)
	case "roundtrip":
		return cfg.roundTrip(reg, files)
	case "descriptors":
		return cfg.extractDescriptors(reg, files)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (cfg *config) registry() (*javaobs.Registry, error) {
	reg := javaobs.NewRegistry()
	reg.SetLogger(cfg.logger)
	if err := javautil.Register(reg); err != nil {
		return nil, err
	}
	for _, path := range cfg.descriptors {
		descs, err := descfile.LoadFile(path, reg)
		if err != nil {
			return nil, err
		}
		cfg.logger.Info("loaded descriptors", zap.String("file", path), zap.Int("classes", len(descs)))
	}
	return reg, nil
}

// readStream returns the decompressed bytes of a file.
func (cfg *config) readStream(path string) ([]byte, error) {
	r, err := source.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.logger.Debug("read stream",
		zap.String("file", path),
		zap.String("compression", string(r.Compression)),
		zap.Int("bytes", len(data)))
	if cfg.digest {
		sum := blake3.Sum256(data)
		fmt.Fprintf(cfg.stderr, "%x  %s\n", sum, path)
	}
	return data, nil
}

// decode reads every top-level object of a file and returns them with
// the raw stream and the session that decoded it.
func (cfg *config) decode(reg *javaobs.Registry, path string) ([]byte, []any, *javaobs.Decoder, error) {
	data, err := cfg.readStream(path)
	if err != nil {
		return nil, nil, nil, err
	}
	dec, err := javaobs.NewDecoder(bytes.NewReader(data), javaobs.WithRegistry(reg), javaobs.WithLogger(cfg.logger))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	objects, err := dec.ReadObjects()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, objects, dec, nil
}

func (cfg *config) dump(reg *javaobs.Registry, files []string) error {
	for _, path := range files {
		_, objects, dec, err := cfg.decode(reg, path)
		if err != nil {
			return err
		}
		out := tree.NewBuilder(dec.Handles()).Build(objects)
		if len(files) > 1 {
			if err := tree.Render(cfg.stdout, cfg.format, map[string]any{"file": path, "objects": out}); err != nil {
				return err
			}
			continue
		}
		if err := tree.Render(cfg.stdout, cfg.format, out); err != nil {
			return err
		}
	}
	return nil
}

func (cfg *config) roundTrip(reg *javaobs.Registry, files []string) error {
	failed := 0
	for _, path := range files {
		data, objects, _, err := cfg.decode(reg, path)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		enc, err := javaobs.NewEncoder(&buf, javaobs.WithRegistry(reg), javaobs.WithLogger(cfg.logger))
		if err != nil {
			return err
		}
		if err := enc.WriteObjects(objects); err != nil {
			return fmt.Errorf("%s: re-encode: %w", path, err)
		}
		if off, ok := firstDifference(data, buf.Bytes()); ok {
			failed++
			fmt.Fprintf(cfg.stdout, "%s: differs at offset %d (input %d bytes, output %d bytes)\n",
				path, off, len(data), buf.Len())
			continue
		}
		fmt.Fprintf(cfg.stdout, "%s: ok (%d objects, %d bytes)\n", path, len(objects), len(data))
	}
	if failed > 0 {
		return &mismatchError{files: failed}
	}
	return nil
}

// firstDifference returns the first offset at which a and b differ.
func firstDifference(a, b []byte) (int, bool) {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i, true
		}
	}
	if len(a) != len(b) {
		return n, true
	}
	return 0, false
}

// extractDescriptors dumps the class descriptors of the given streams in
// the order they first appear.
func (cfg *config) extractDescriptors(reg *javaobs.Registry, files []string) error {
	var descs []*javaobs.ClassDescriptor
	seen := make(map[string]bool)
	for _, path := range files {
		_, _, dec, err := cfg.decode(reg, path)
		if err != nil {
			return err
		}
		handles := dec.Handles()
		for h := 0; h < handles.Len(); h++ {
			v, _ := handles.Lookup(int32(h))
			if desc, ok := v.(*javaobs.ClassDescriptor); ok && !seen[desc.Name] {
				seen[desc.Name] = true
				descs = append(descs, desc)
			}
		}
	}
	return descfile.Dump(cfg.stdout, descs)
}

func printHelp(flagSet *pflag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `javaobs inspects Java object serialization streams.

Usage:
  javaobs [flags] dump FILE...
  javaobs [flags] roundtrip FILE...
  javaobs [flags] descriptors FILE...

Commands:
  dump          render the decoded object graph; shared objects appear
                once and later occurrences as {$ref: handle}
  roundtrip     decode and re-encode each file, reporting the first
                differing offset; exits 1 on any mismatch
  descriptors   write a descriptor file for every class seen, suitable
                for --descriptors

Flags:
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
