package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for changing the derivation later.
const (
	DomainNode    = "fontrecipe/node/v1"
	DomainRecipe  = "fontrecipe/recipe/v1"
	DomainContent = "fontrecipe/content/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// NodeKey derives the canonical key of a graph node from its identity fields.
// The caller decides which fields participate; the key depends only on their
// canonical encoding, never on map iteration order.
func NodeKey(fields Map) (string, error) {
	data, err := MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("NodeKey: %w", err)
	}
	return hashWithDomain(DomainNode, data), nil
}

// RecipeHash identifies a resolved recipe for build history.
func RecipeHash(canonical []byte) string {
	return hashWithDomain(DomainRecipe, canonical)
}

// ContentHash hashes a file, or every regular file below a directory in
// lexical order. Directory entries contribute their relative path so renames
// change the hash.
func ContentHash(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(DomainContent))
	h.Write([]byte{0x00})
	if !info.IsDir() {
		if err := hashFile(h, path); err != nil {
			return "", err
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(files)
	for _, f := range files {
		rel, err := filepath.Rel(path, f)
		if err != nil {
			return "", err
		}
		h.Write([]byte(filepath.ToSlash(rel)))
		h.Write([]byte{0x00})
		if err := hashFile(h, f); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// ArtifactsHash combines the content hashes of several artifacts, in order,
// with their paths. Relative paths are read below root but recorded as given.
func ArtifactsHash(root string, paths []string) (string, error) {
	entries := make(List, 0, len(paths))
	for _, p := range paths {
		full := p
		if !filepath.IsAbs(p) {
			full = filepath.Join(root, p)
		}
		h, err := ContentHash(full)
		if err != nil {
			return "", err
		}
		entries = append(entries, List{String(p), String(h)})
	}
	data, err := MarshalCanonical(entries)
	if err != nil {
		return "", fmt.Errorf("ArtifactsHash: %w", err)
	}
	return hashWithDomain(DomainContent, data), nil
}
