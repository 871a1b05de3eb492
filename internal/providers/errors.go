package providers

import "fmt"

// MissingCredentialError is returned when a provider client is constructed without its API key
type MissingCredentialError struct {
	Provider string
	EnvVar   string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s: %s environment variable not set", e.Provider, e.EnvVar)
}

// GenerationParseError is returned when model output does not match the story schema
type GenerationParseError struct {
	Raw string
	Err error
}

func (e *GenerationParseError) Error() string {
	return fmt.Sprintf("failed to parse generated story: %v", e.Err)
}

func (e *GenerationParseError) Unwrap() error {
	return e.Err
}
