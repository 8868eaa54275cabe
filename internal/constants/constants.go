// Package constants provides shared constants used across the codebase.
package constants

// Web handler constants
const (
	// MaxUploadSize is the maximum recognize upload size in bytes (20MB)
	MaxUploadSize = 20 << 20

	// DefaultSightingsLimit is the default page size for the sightings endpoint
	DefaultSightingsLimit = 100

	// MaxSightingsLimit caps the sightings page size
	MaxSightingsLimit = 1000
)

// Watch loop constants
const (
	// DefaultFPSEvery is how often the watch command prints its frame rate
	DefaultFPSEvery = 5

	// FPSWindowSeconds is the sliding window used to compute the frame rate
	FPSWindowSeconds = 3
)
