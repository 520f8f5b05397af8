// Package audio plays cached renditions for the operator. Playback goes
// through oto/v3 for PCM WAV files or through an external command for
// anything else, and a mock player records plays in tests.
package audio
