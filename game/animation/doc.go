// Package animation plays engine animations as eased tweens.
//
// TweenAnimator implements engine.Animator. A move slides its subject between
// two anchors over 160ms with an in-out quintic ease; a fall into the crusher
// additionally shrinks the subject to half size and fades it out. Each frame is
// reported to a Sink so a presentation layer can draw it, and Animate returns
// only after the final frame.
package animation
