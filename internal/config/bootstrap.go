// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	_ "embed"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

// FileName is the config file name discovered in the search paths.
const FileName = "vnns.yaml"

//go:embed vnns.yaml.default
var DefaultConfigYAML []byte

// SearchPaths returns the directories searched for vnns.yaml, in order.
func SearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "vnns"))
	} else {
		slog.Debug("skipping home config directory", "error", err)
	}
	return paths
}

// WriteDefault writes the default commented config into dir. An existing
// file is left untouched and reported as a conflict.
func WriteDefault(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", vnnserr.Errorf(vnnserr.CodeCLISetupFailure, "creating config directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", vnnserr.New(vnnserr.CodeCLIInitConflict, "config file already exists",
				vnnserr.FieldPath(path))
		}
		return "", vnnserr.Errorf(vnnserr.CodeCLISetupFailure, "creating config %s: %w", path, err)
	}
	if _, err := f.Write(DefaultConfigYAML); err != nil {
		_ = f.Close()
		return "", vnnserr.Errorf(vnnserr.CodeCLISetupFailure, "writing config %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", vnnserr.Errorf(vnnserr.CodeCLISetupFailure, "closing config %s: %w", path, err)
	}

	slog.Info("created default config", "path", path)
	return path, nil
}
