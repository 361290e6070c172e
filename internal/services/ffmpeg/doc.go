// Package ffmpeg wraps the ffmpeg binary behind the convert-video and
// extract-audio parser implementations.
//
// Conversion transcodes video containers into mono 16kHz MP3 audio sized for
// transcription backends; extraction normalizes standalone audio containers
// to mono 16kHz WAV. Both shell out through a shared client whose command
// runner is injectable for tests.
package ffmpeg
