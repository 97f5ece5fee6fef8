// Package secret keeps key material out of config files.
//
// Config values pass through a Resolver before use. A value may name a
// secret instead of containing one:
//
//	auth.hs_secret:       secretref:env:JWT_SIGNING_KEY
//	cache.redis.password: secretref:env:REDIS_PASSWORD
//
// A reference may also be embedded in a larger value when it is the
// trailing token:
//
//	idp.client_auth: Bearer secretref:env:IDP_CLIENT_SECRET
//
// Plain values are still expanded strictly against the environment, so
// ${VAR} placeholders error when VAR is unset rather than resolving to
// an empty address. Providers are pluggable through Registry; the env
// provider is built in.
package secret
