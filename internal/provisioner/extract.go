package provisioner

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/adammcdonagh/sensu-asset-builder/internal/config"
	"github.com/adammcdonagh/sensu-asset-builder/internal/logger"
)

// maxEntrySize caps a single extracted file.
const maxEntrySize = 1 << 30

var (
	errUnsafePath    = errors.New("archive entry escapes destination")
	errEntryTooLarge = errors.New("archive entry exceeds size limit")
)

type pendingLink struct {
	path   string
	target string
	hard   bool
}

// extractTarGz unpacks a gzip-compressed tarball into destDir. Links are
// created after regular files so they may point at entries that come later.
// Regular files larger than limit bytes fail the extraction.
func extractTarGz(ctx context.Context, archivePath, destDir string, limit int64) error {
	//nolint:gosec // G304: the archive path is built from the cache directory.
	file, err := os.Open(archivePath)
	if err != nil {
		return err
	}

	defer func() {
		_ = file.Close()
	}()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}

	defer func() {
		_ = gzr.Close()
	}()

	if err = os.MkdirAll(destDir, config.DefaultDirPermissions); err != nil {
		return err
	}

	root := filepath.Clean(destDir)

	var links []pendingLink

	tr := tar.NewReader(gzr)

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}

		target, err := safeJoin(root, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err = os.MkdirAll(target, config.DefaultDirPermissions); err != nil {
				return err
			}
		case tar.TypeReg:
			if header.Size > limit {
				return fmt.Errorf("%q is %d bytes: %w", header.Name, header.Size, errEntryTooLarge)
			}

			if err = writeFile(tr, target, header.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeLink:
			source, joinErr := safeJoin(root, header.Linkname)
			if joinErr != nil {
				return joinErr
			}

			links = append(links, pendingLink{path: target, target: source, hard: true})
		case tar.TypeSymlink:
			links = append(links, pendingLink{path: target, target: header.Linkname})
		default:
			logger.DebugKV(ctx, "Skipping unsupported archive entry", "name", header.Name, "type", string(header.Typeflag))
		}
	}

	for _, link := range links {
		if err := os.MkdirAll(filepath.Dir(link.path), config.DefaultDirPermissions); err != nil {
			return err
		}

		_ = os.Remove(link.path)

		if link.hard {
			if err := os.Link(link.target, link.path); err != nil {
				return fmt.Errorf("hardlink %s: %w", link.path, err)
			}

			continue
		}

		if err := os.Symlink(link.target, link.path); err != nil {
			return fmt.Errorf("symlink %s: %w", link.path, err)
		}
	}

	return nil
}

func writeFile(r io.Reader, path string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), config.DefaultDirPermissions); err != nil {
		return err
	}

	//nolint:gosec // G304: path is checked by safeJoin.
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	//nolint:gosec // G110: the caller rejects entries above the size limit.
	if _, err = io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}

func safeJoin(root, name string) (string, error) {
	target := filepath.Join(root, name) //nolint:gosec // G305: checked below.
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%q: %w", name, errUnsafePath)
	}

	return target, nil
}
