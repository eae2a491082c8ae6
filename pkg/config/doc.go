// Package config loads application configuration from environment variables.
//
// It wraps github.com/joho/godotenv for optional .env files and
// github.com/caarlos0/env/v11 for parsing tagged structs. Every package that
// needs settings exposes its own Config struct with env tags; the binary
// composes them into one struct and calls Load once at startup.
//
//	if err := config.LoadEnv(); err != nil {
//		return err
//	}
//	cfg, err := config.Load[AppConfig]()
//
// Nested structs are parsed recursively, so a composed config only needs the
// leaf packages to declare their variables.
package config
