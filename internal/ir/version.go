package ir

// Version constants recorded alongside build history.
const (
	// KeyVersion changes whenever the canonical key derivation changes.
	KeyVersion = "1"

	// EngineVersion is the fontrecipe engine version.
	EngineVersion = "0.3.0"
)
