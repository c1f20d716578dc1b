// Package config loads the gateway configuration.
//
// A file is read as YAML after strict ${VAR} expansion, layered over
// Default, and then credential fields are resolved through secret
// references such as "secretref:env:OPENAI_API_KEY" or
// "secretref:file:/run/secrets/pg_dsn".
//
//	cfg, err := config.Load(ctx, "algateway.yaml")
//	if err != nil {
//	    return err
//	}
//	policy := cfg.Cache.Policy()
package config
