// Package audio synthesizes the sound cues a match requests.
//
// Cues are generated from simple oscillators with attack and release shaping,
// so no audio assets ship with the binary. CuePlayer implements
// engine.AudioPlayer and hands each synthesized stream to an Output; Speaker is
// the Output for the system audio device.
package audio
