// Package secret resolves credentials referenced from gateway configuration.
//
// Two steps run on every configured credential:
//   - strict environment expansion: ${VAR} must be set (see ExpandEnvStrict)
//   - reference resolution: values of the form secretref:<provider>:<ref>,
//     whole or inline, are replaced by the provider's answer (see Resolver)
//
// The gateway ships an env provider and a file provider:
//
//	store.privileged_dsn: secretref:env:AL_DATABASE_URL
//	embedding.api_key:    secretref:file:/run/secrets/openai_api_key
//	websearch.api_key:    Bearer secretref:env:EXA_API_KEY
//
// Providers never log the values they return.
package secret
