// internal/parser/detector.go
package parser

import (
	"bytes"
	"os"
)

type FileType string

const (
	FileTypeFIT     FileType = "fit"
	FileTypeUnknown FileType = "unknown"
)

// fitSignature sits at bytes 8..12 of every FIT file header.
var fitSignature = []byte(".FIT")

func DetectFileType(filepath string) (FileType, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return FileTypeUnknown, err
	}
	defer file.Close()

	header := make([]byte, 14)
	n, err := file.Read(header)
	if err != nil && n == 0 {
		return FileTypeUnknown, err
	}

	return DetectFileTypeFromData(header[:n]), nil
}

func DetectFileTypeFromData(data []byte) FileType {
	if len(data) >= 12 && bytes.Equal(data[8:12], fitSignature) {
		return FileTypeFIT
	}
	return FileTypeUnknown
}
