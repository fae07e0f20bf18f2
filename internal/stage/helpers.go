package stage

import (
	"encoding/json"
	"strings"

	"platter/internal/disc"
	"platter/internal/metadata"
	"platter/internal/services"
)

// ParseAlbum decodes the album metadata stored on a queue item.
// On failure it returns a services.ErrValidation suitable for stage Execute methods.
func ParseAlbum(raw string) (*metadata.Album, error) {
	album, err := metadata.Unmarshal(raw)
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "parse album metadata",
			"Album metadata missing or invalid; rerun identification", err)
	}
	return album, nil
}

// ParseTOC decodes the disc table of contents stored on a queue item.
func ParseTOC(raw string) (disc.TOC, error) {
	if strings.TrimSpace(raw) == "" {
		return disc.TOC{}, services.Wrap(
			services.ErrValidation, "stage", "parse disc toc",
			"Disc table of contents missing; rerun identification", nil)
	}
	var toc disc.TOC
	if err := json.Unmarshal([]byte(raw), &toc); err != nil {
		return disc.TOC{}, services.Wrap(
			services.ErrValidation, "stage", "parse disc toc",
			"Disc table of contents invalid; rerun identification", err)
	}
	return toc, nil
}

// EncodeTOC serializes a table of contents for queue persistence.
func EncodeTOC(toc disc.TOC) (string, error) {
	data, err := json.Marshal(toc)
	if err != nil {
		return "", services.Wrap(
			services.ErrTransient, "stage", "encode disc toc",
			"Failed to serialize disc table of contents", err)
	}
	return string(data), nil
}
