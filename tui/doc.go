// Package tui plays a match in the terminal.
//
// Game subscribes to a match, redraws it at about 60 frames per second and
// sends arrow, WASD or hjkl key presses to the match as moves. Robots in
// motion are drawn at the positions reported through Sink, so pairing the
// game with an animation.TweenAnimator shows slides and falls as they happen.
package tui
