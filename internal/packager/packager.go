package packager

import (
	"archive/tar"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/adammcdonagh/sensu-asset-builder/internal/config"
	"github.com/adammcdonagh/sensu-asset-builder/internal/domain/asset"
	"github.com/adammcdonagh/sensu-asset-builder/internal/logger"
)

// DigestBufferSize is the read size used while hashing archives.
const DigestBufferSize = 64 * 1024

// Request describes one archive to produce.
type Request struct {
	// Root is the build root whose contents are archived.
	Root string
	// AssetName and Version form the archive name prefix.
	AssetName string
	Version   string
	// Target selects the platform part of the archive name.
	Target asset.Target
}

// Packager writes archives into one output directory.
type Packager struct {
	// outputDir receives the archives.
	outputDir string
}

// New creates a packager writing into outputDir.
func New(outputDir string) *Packager {
	return &Packager{outputDir: outputDir}
}

// Package archives req.Root and returns the target enriched with the archive path and digest.
func (p *Packager) Package(ctx context.Context, req Request) (asset.Target, error) {
	if err := os.MkdirAll(p.outputDir, config.DefaultDirPermissions); err != nil {
		return req.Target, fmt.Errorf("create output directory: %w: %w", err, asset.ErrArchivalFailure)
	}

	path := filepath.Join(p.outputDir, req.Target.ArchiveName(req.AssetName, req.Version))

	if err := writeArchive(req.Root, path); err != nil {
		_ = os.Remove(path)
		return req.Target, fmt.Errorf("archive %s: %w: %w", filepath.Base(path), err, asset.ErrArchivalFailure)
	}

	digest, err := Digest(path)
	if err != nil {
		return req.Target, err
	}

	logger.InfoKV(ctx, "Packaged asset", "archive", path, "sha512", digest)

	return req.Target.WithArchive(path, digest), nil
}

// Digest returns the hex SHA-512 of the file at path.
func Digest(path string) (string, error) {
	//nolint:gosec // G304: archives are produced by this package.
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w: %w", path, err, asset.ErrArchivalFailure)
	}

	defer func() {
		_ = file.Close()
	}()

	var (
		hasher = sha512.New()
		buf    = make([]byte, DigestBufferSize)
	)

	for {
		n, readErr := file.Read(buf)
		if n > 0 {
			_, _ = hasher.Write(buf[:n])
		}

		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return "", fmt.Errorf("hash %s: %w: %w", path, readErr, asset.ErrArchivalFailure)
		}
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// writeArchive stores every entry under root with "./"-relative names.
func writeArchive(root, path string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("%s: %w", root, fs.ErrInvalid)
	}

	//nolint:gosec // G304: path is inside the output directory.
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, config.DefaultFilePermissions)
	if err != nil {
		return err
	}

	gzw := gzip.NewWriter(out)
	tw := tar.NewWriter(gzw)

	err = filepath.WalkDir(root, func(name string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		return addEntry(tw, root, name, d)
	})

	for _, closer := range []io.Closer{tw, gzw, out} {
		if closeErr := closer.Close(); err == nil {
			err = closeErr
		}
	}

	return err
}

func addEntry(tw *tar.Writer, root, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(root, name)
	if err != nil {
		return err
	}

	var link string

	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(name); err != nil {
			return err
		}
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}

	header.Name = "./" + filepath.ToSlash(rel)
	if rel == "." {
		header.Name = "./"
	} else if info.IsDir() {
		header.Name += "/"
	}

	if err = tw.WriteHeader(header); err != nil {
		return err
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	//nolint:gosec // G304: name comes from walking the build root.
	file, err := os.Open(name)
	if err != nil {
		return err
	}

	defer func() {
		_ = file.Close()
	}()

	_, err = io.Copy(tw, file)

	return err
}
