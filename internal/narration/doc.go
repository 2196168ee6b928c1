// Package narration turns advisor replies into spoken mp3 artifacts.
//
// Every Narrate call writes a new file named speech-<uuid>.mp3, so a URL
// handed to one client never starts serving audio produced for another.
// Store keeps the newest files up to a configured count and a janitor
// goroutine removes files past their maximum age.
package narration
