// Package screen captures screen images and answers questions about screen
// state: perceptual hashing for stability detection, template matching for
// pre-click verification, and the wait-for-stability heuristic that treats
// visual stillness as a proxy for "page finished loading".
//
// The actual pixel source is the Grabber capability, implemented by the
// robotgo adapter in production and by synthetic frame generators in tests.
package screen
