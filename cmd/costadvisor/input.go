package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/younsl/costadvisor/internal/models"
)

// inputFile is the offline descriptor document accepted by --input
type inputFile struct {
	Resources []models.ResourceDescriptor `json:"resources"`
	Buckets   []models.BucketDescriptor   `json:"buckets"`
}

func readInput(path string) (inputFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return inputFile{}, fmt.Errorf("error reading input file: %w", err)
	}
	var input inputFile
	if err := json.Unmarshal(data, &input); err != nil {
		return inputFile{}, fmt.Errorf("error parsing input file %s: %w", path, err)
	}
	return input, nil
}
