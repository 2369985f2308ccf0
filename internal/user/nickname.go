package users

import "math/rand/v2"

var adjectives = []string{
	"Funky", "Groovy", "Cosmic", "Electric", "Retro", "Synth", "Neon",
	"Golden", "Diamond", "Silver", "Platinum", "Vinyl", "Acoustic",
	"Rhythmic", "Melodic", "Harmonic", "Lyrical", "Vibing", "Jazzy",
	"Rocking", "Indie", "Screaming", "Whispering", "Wailing", "Crooning",
	"Digital", "Analog", "Stereo", "Mono", "Heavy", "Light", "Dark", "Bright",
	"Psychedelic", "Fuzzy", "Distorted", "Clean", "Reverb", "Echo", "Phase",
	"Flanger", "Chorus", "Wah", "Major", "Minor", "Sad", "Happy", "Chill",
}

var nouns = []string{
	"Rider", "Voyager", "Dreamer", "Pilot", "Pioneer", "Bandit", "Ghost",
	"Knight", "Wizard", "Sorcerer", "King", "Queen", "Prince", "Princess",
	"Warrior", "Samurai", "Ninja", "Cowboy", "Spaceman", "Stardust",
	"Echo", "Reverb", "Delay", "Fuzz", "Distortion", "Wah", "Phaser", "Flanger",
	"Beat", "Rhythm", "Melody", "Harmony", "Chord", "Note", "Octave", "Scale",
	"Groove", "Jam", "Solo", "Riff", "Hook", "Verse", "Chorus", "Bridge",
	"Outro", "Intro", "Mix", "Master",
}

// GenerateNickname returns a random "Adjective Noun" name for guests who
// haven't picked one.
func GenerateNickname() string {
	return adjectives[rand.IntN(len(adjectives))] + " " + nouns[rand.IntN(len(nouns))]
}
