// Package disc reads audio CD tables of contents and manages the physical
// drive.
//
// TOC data comes from the cd-discid utility rather than raw SCSI commands; the
// parsed offsets feed both the MusicBrainz lookup and a SHA-256 fingerprint
// used for queue deduplication. The package also wraps tray control (eject via
// the eject binary with an ioctl fallback) and drive readiness polling.
package disc
