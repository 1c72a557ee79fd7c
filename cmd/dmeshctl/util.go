package main

import (
	"io"
	"os"
)

// readArgOrStdin reads path's contents, or stdin when path is "-".
func readArgOrStdin(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
