package main

import (
	"fmt"
	"os"

	"github.com/minio/highwayhash"
)

var fingerprintKey = []byte("faultfix-source-fingerprint-key!")

// Fingerprint returns the HighwayHash-64 of data as 16 hex digits.
func Fingerprint(data []byte) (string, error) {
	hash, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		return "", err
	}
	if _, err := hash.Write(data); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", hash.Sum64()), nil
}

// FingerprintFiles hashes every file, tagging each with revision.
func FingerprintFiles(paths []string, revision string) ([]SourceFile, error) {
	out := make([]SourceFile, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("fingerprint %s: %w", path, err)
		}
		hash, err := Fingerprint(data)
		if err != nil {
			return nil, fmt.Errorf("fingerprint %s: %w", path, err)
		}
		out = append(out, SourceFile{Path: path, Hash: hash, Revision: revision})
	}
	return out, nil
}
