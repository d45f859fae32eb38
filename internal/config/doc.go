// Package config defines the builder settings and loads them once at startup.
//
// Settings come from an optional YAML file and are overridden by the
// BONSAI_PROTOCOL, BONSAI_HOST, GITHUB_TOKEN and PYTHON_RUNTIME_REPO
// environment variables. The resulting Config is passed explicitly to every
// pipeline component.
package config
