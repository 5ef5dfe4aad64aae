package model

// Version is the lazytree release, overridden at build time with -ldflags.
var Version = "0.3.0"
