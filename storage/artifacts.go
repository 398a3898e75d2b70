// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FsHandle stores test artifacts (screenshots, device logs, videos) on the
// local filesystem, one directory per test run. Result rows reference
// artifacts by name only; bytes never go into the database.
type FsHandle struct {
	root string
}

func NewFs(root string) (*FsHandle, error) {
	if err := os.MkdirAll(root, 0o744); err != nil {
		return nil, fmt.Errorf("unable to initialize artifact storage: %w", err)
	}
	return &FsHandle{root: root}, nil
}

func validArtifactName(name string) error {
	if name == "" || strings.ContainsRune(name, '/') || strings.Contains(name, "..") {
		return fmt.Errorf("invalid artifact name: %s", name)
	}
	return nil
}

func (s FsHandle) WriteArtifact(runUuid, name string, src io.Reader) error {
	if err := validArtifactName(name); err != nil {
		return err
	}
	dir := filepath.Join(s.root, runUuid)
	if err := os.MkdirAll(dir, 0o744); err != nil {
		return fmt.Errorf("unable to create artifact storage for run %s: %w", runUuid, err)
	}
	dst, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o744)
	if err != nil {
		return fmt.Errorf("error writing artifact %s for run %s: %w", name, runUuid, err)
	}
	if _, err = io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("error writing artifact content %s for run %s: %w", name, runUuid, err)
	}
	return dst.Close()
}

func (s FsHandle) ReadArtifact(runUuid, name string) (io.ReadCloser, error) {
	if err := validArtifactName(name); err != nil {
		return nil, err
	}
	fd, err := os.Open(filepath.Join(s.root, runUuid, name))
	if err != nil {
		return nil, fmt.Errorf("error reading artifact %s for run %s: %w", name, runUuid, err)
	}
	return fd, nil
}

func (s FsHandle) ListArtifacts(runUuid string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, runUuid))
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("error listing artifacts for run %s: %w", runUuid, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
