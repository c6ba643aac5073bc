package garmin

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"

	"github.com/garava/garava/internal/logger"
)

// ExtractFitFromZip pulls the FIT payload out of an in-memory activity
// archive. Garmin activity downloads are ZIP files holding a single FIT
// entry; when multiple FIT entries are present the first in listing order is
// used and a warning is logged.
func ExtractFitFromZip(zipBytes []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return nil, &ExtractionError{Message: "invalid zip archive", Err: err}
	}

	var fitEntries []*zip.File
	for _, f := range reader.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".fit") {
			fitEntries = append(fitEntries, f)
		}
	}

	if len(fitEntries) == 0 {
		return nil, &ExtractionError{Message: "no FIT file found in zip archive"}
	}
	if len(fitEntries) > 1 {
		names := make([]string, len(fitEntries))
		for i, f := range fitEntries {
			names[i] = f.Name
		}
		logger.Warn("Multiple FIT files in archive, using first: %v", names)
	}

	entry := fitEntries[0]
	rc, err := entry.Open()
	if err != nil {
		return nil, &ExtractionError{Message: "failed to open FIT entry", Err: err}
	}
	defer rc.Close()

	fitBytes, err := io.ReadAll(rc)
	if err != nil {
		return nil, &ExtractionError{Message: "failed to read FIT entry", Err: err}
	}

	logger.Debug("Extracted FIT file %s (%d bytes)", entry.Name, len(fitBytes))
	return fitBytes, nil
}
