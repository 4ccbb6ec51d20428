// ABOUTME: Version constants for the audio engine
// ABOUTME: Reported by binaries at startup
package version

const (
	// Version is the software version
	Version = "0.1.0"

	// Product is the product name
	Product = "Dumble Audio Engine"

	// Manufacturer identifies the publisher
	Manufacturer = "epnw"
)

// String returns the product banner, e.g. "Dumble Audio Engine 0.1.0 (epnw)"
func String() string {
	return Product + " " + Version + " (" + Manufacturer + ")"
}
