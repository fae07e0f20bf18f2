package identification

import (
	"strings"

	"platter/internal/disc"
	"platter/internal/identification/musicbrainz"
)

// selectRelease picks the release and medium that best match the disc table of
// contents. The TOC lookup is fuzzy, so releases whose media do not match the
// disc track count are discarded outright. Among the rest, CD media beat other
// formats, official releases beat promos and bootlegs, and the earliest
// release date wins ties so reissues do not shadow the original pressing.
func selectRelease(toc disc.TOC, releases []musicbrainz.Release) (musicbrainz.Release, musicbrainz.Medium, bool) {
	var (
		bestRelease musicbrainz.Release
		bestMedium  musicbrainz.Medium
		bestScore   = -1
		found       bool
	)
	for _, release := range releases {
		for _, medium := range release.Media {
			if mediumTrackCount(medium) != toc.TrackCount() {
				continue
			}
			score := scoreCandidate(release, medium)
			better := score > bestScore ||
				(score == bestScore && releaseDateBefore(release.Date, bestRelease.Date))
			if better {
				bestRelease = release
				bestMedium = medium
				bestScore = score
				found = true
			}
		}
	}
	return bestRelease, bestMedium, found
}

func mediumTrackCount(medium musicbrainz.Medium) int {
	if len(medium.Tracks) > 0 {
		return len(medium.Tracks)
	}
	return medium.TrackCount
}

func scoreCandidate(release musicbrainz.Release, medium musicbrainz.Medium) int {
	score := 0
	if strings.EqualFold(strings.TrimSpace(medium.Format), "CD") {
		score += 2
	}
	if strings.EqualFold(strings.TrimSpace(release.Status), "Official") {
		score++
	}
	if len(medium.Tracks) > 0 {
		// Full track listings beat bare track counts; tags need titles.
		score++
	}
	return score
}

// releaseDateBefore compares MusicBrainz dates, which are ISO prefixes of
// varying precision (YYYY, YYYY-MM, or YYYY-MM-DD). Lexicographic order is
// chronological for these, and missing dates always lose.
func releaseDateBefore(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" {
		return false
	}
	if b == "" {
		return true
	}
	return a < b
}
