// Package config provides the environment-backed configuration of the
// PointDeck server.
//
// All settings have defaults and can be set through POINTDECK_*
// environment variables (a .env file is honored when present) or
// overridden by command line flags at startup. The capacity limits —
// maximum concurrent sessions and maximum users per session — are
// enforced exactly by the session directory and engine.
package config
