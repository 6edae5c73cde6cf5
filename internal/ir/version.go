package ir

// Version constants for the program format and generator.
const (
	// IRVersion is the serialized program format version.
	IRVersion = "1"

	// GeneratorVersion is the traingen release.
	GeneratorVersion = "0.1.0"
)
