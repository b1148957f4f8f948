package testutil

import "github.com/google/uuid"

// RunTokenGenerator produces the token that identifies one harness run.
//
// Production runs use UUIDv7Generator so tokens sort by creation time;
// tests and golden scenarios use FixedTokenGenerator so traces are
// byte-identical across runs.
type RunTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-ordered UUID run tokens.
type UUIDv7Generator struct{}

// Generate returns a fresh UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedTokenGenerator generates the same run token every time.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario with the same FixedTokenGenerator produces
// byte-identical traces.
//
// Thread-safety: FixedTokenGenerator is stateless and safe for concurrent use.
type FixedTokenGenerator struct {
	token string
}

// NewFixedTokenGenerator creates a new fixed run token generator.
//
// The token is typically set in the scenario YAML:
//
//	run_token: "run-00000000-0000-0000-0000-000000000001"
//
// If token is empty, Generate() returns "run-default".
func NewFixedTokenGenerator(token string) *FixedTokenGenerator {
	if token == "" {
		token = "run-default"
	}
	return &FixedTokenGenerator{token: token}
}

// Generate returns the fixed run token.
func (g *FixedTokenGenerator) Generate() string {
	return g.token
}
