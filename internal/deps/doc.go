// Package deps checks availability of the external binaries Platter shells
// out to: cd-discid, cdparanoia, flac, and eject.
package deps
