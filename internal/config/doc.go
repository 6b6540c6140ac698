// Package config handles configuration loading for the stock feed.
//
// Settings come from an optional YAML file (with ${VAR} environment variable
// interpolation), then from well-known environment variables, which may in
// turn be populated from a .env file. Defaults fill whatever is still unset.
package config
