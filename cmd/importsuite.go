// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"fmt"
	"path/filepath"

	"github.com/testforge/devicelab/storage"
	"github.com/testforge/devicelab/suitespec"
)

type ImportSuiteCmd struct {
	File string `arg:"positional,required" help:"Path to the YAML suite definition"`
}

func (c *ImportSuiteCmd) Run(args CommonArgs) error {
	sf, err := suitespec.Load(c.File)
	if err != nil {
		return err
	}

	db, err := storage.NewDb(filepath.Join(args.DataDir, "devicelab.db"))
	if err != nil {
		return err
	}
	defer db.Close()
	fs, err := storage.NewFs(args.DataDir)
	if err != nil {
		return err
	}
	store, err := storage.NewStorage(db, fs)
	if err != nil {
		return err
	}

	suite, err := store.SuiteImport(sf)
	if err != nil {
		return err
	}
	fmt.Printf("Imported suite %s (%s) with %d cases\n", suite.Name, suite.Uuid, len(sf.Cases))
	return nil
}
