/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package store

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/Seednode/kakaroto/game"
)

var collectionExtensions = []string{".json", ".yaml", ".yml"}

// ReadCollections loads collections from a YAML or JSON file, or from every
// such file in a directory. A file holds either one collection or a list.
func ReadCollections(path string) ([]game.Collection, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return readCollectionFile(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var collections []game.Collection
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || !slices.Contains(collectionExtensions, ext) {
			continue
		}

		c, err := readCollectionFile(filepath.Join(path, entry.Name()))
		if err != nil {
			return nil, err
		}
		collections = append(collections, c...)
	}

	return collections, nil
}

func readCollectionFile(path string) ([]game.Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var collections []game.Collection
	if err := yaml.Unmarshal(data, &collections); err != nil {
		var single game.Collection
		if err := yaml.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		collections = []game.Collection{single}
	}

	for i, c := range collections {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%s: collection %d: %w", path, i+1, err)
		}
	}

	return collections, nil
}
