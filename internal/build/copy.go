package build

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/adammcdonagh/sensu-asset-builder/internal/config"
)

// copyTree copies src into dst, merging with existing directories. Symlinks
// are recreated rather than followed and file modes are kept.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, config.DefaultDirPermissions)
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}

			_ = os.Remove(target)

			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			return nil
		}
	})
}

func copyFile(src, dst string, mode fs.FileMode) error {
	//nolint:gosec // G304: src comes from walking a trusted tree.
	in, err := os.Open(src)
	if err != nil {
		return err
	}

	defer func() {
		_ = in.Close()
	}()

	//nolint:gosec // G304: dst is inside the build root.
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}
