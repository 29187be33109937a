// Package config loads application configuration from CRITIQ_* environment
// variables with sensible defaults, and validates the combinations that
// cannot work (missing secrets, colliding ports, an SMTP notifier without
// a host).
package config
