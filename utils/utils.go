package utils

import (
	"math"
	"os"
)

func FileExist(filePath string) bool {
	_, err := os.Stat(filePath)
	return !os.IsNotExist(err)
}

func CreateDirIfNotExist(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}

	return nil
}

// Round2 rounds a float to 2 decimal places.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}
