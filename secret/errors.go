package secret

import "errors"

var (
	// ErrMissingEnv reports ${VAR} references to unset variables.
	ErrMissingEnv = errors.New("secret: missing environment variables")

	// ErrProviderNotRegistered reports a secretref naming an unknown provider.
	ErrProviderNotRegistered = errors.New("secret: provider not registered")

	// ErrSecretNotFound reports a reference the provider cannot find.
	ErrSecretNotFound = errors.New("secret: not found")

	// ErrEmptySecret reports an empty value from a strict resolver.
	ErrEmptySecret = errors.New("secret: empty value")
)
