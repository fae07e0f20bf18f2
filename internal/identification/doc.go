// Package identification resolves inserted discs to album metadata. The TOC
// read by cd-discid is submitted to MusicBrainz, which performs the disc ID
// computation server side; the best matching release is stored on the queue
// item for the rip, encode, and organize stages.
package identification
