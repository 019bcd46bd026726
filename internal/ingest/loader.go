/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package ingest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// DefaultExtensions are the document types picked up by a scan.
var DefaultExtensions = []string{".md", ".txt", ".mdx", ".pdf"}

// Loader extracts plain text from one document.
type Loader func(path string) (string, error)

// loaderFor picks a loader by file extension. Everything that is not a PDF
// is read as UTF-8 text.
func loaderFor(path string) Loader {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return loadPDF
	}
	return loadText
}

func loadText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%s is not valid UTF-8", path)
	}
	return string(b), nil
}

func loadPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// hasExtension matches case-insensitively; exts are expected with a
// leading dot.
func hasExtension(path string, exts []string) bool {
	ext := filepath.Ext(path)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// scan walks dir recursively in lexical order and returns matching files.
func scan(dir string, exts []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && hasExtension(path, exts) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
