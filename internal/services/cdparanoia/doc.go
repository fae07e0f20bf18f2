// Package cdparanoia shells out to the cdparanoia CLI to extract audio CD
// tracks to wav files. The tool owns error correction and jitter handling;
// this package only builds arguments and relays progress.
package cdparanoia
