package emit

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// Options selects which artefacts WriteAll produces and where. The
// primary artefact is always written in Format to OutputFile (from the
// -f/-o flags); output.generate_bin and output.generate_hex are not
// consulted. The listing follows -l or output.generate_lst, and the map
// follows output.generate_map.
type Options struct {
	Format      string // "bin", "hex", or "txt"
	OutputFile  string
	ListingFile string // empty disables the .lst artefact
	MapFile     string // empty disables the .map artefact
}

// writeFileAtomic writes data to a temporary file in path's directory
// and renames it into place, so a crash or abort mid-write never
// leaves a half-written artefact at path — spec.md §5's "written once
// at the end... and atomically renamed" requirement.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tasm-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publishing %s: %w", path, err)
	}
	return nil
}

// WriteAll produces every artefact opts enables, one goroutine per
// artefact via errgroup.Group: the primary format (bin/hex/txt) plus
// an optional listing and map file, each reading the same frozen
// Program and writing its own temp file and rename. This is safe
// precisely because nothing here mutates p — the core pipeline's
// single-threaded requirement (spec.md §5) covers parsing and the
// fixpoint, not this strictly-readonly fan-out over already-settled
// addresses.
func WriteAll(p *Program, opts Options) error {
	entries := p.Entries()

	var g errgroup.Group

	if opts.OutputFile != "" {
		g.Go(func() error {
			switch opts.Format {
			case "hex":
				return writeFileAtomic(opts.OutputFile, []byte(WriteHex(entries)))
			case "txt":
				return writeFileAtomic(opts.OutputFile, []byte(WriteTxt(entries, p.Endian)))
			default:
				return writeFileAtomic(opts.OutputFile, WriteBin(entries))
			}
		})
	}

	if opts.ListingFile != "" {
		g.Go(func() error {
			return writeFileAtomic(opts.ListingFile, []byte(WriteListing(p)))
		})
	}

	if opts.MapFile != "" {
		g.Go(func() error {
			return writeFileAtomic(opts.MapFile, []byte(WriteMap(p)))
		})
	}

	return g.Wait()
}
