// Package config provides configuration management for patent-downloader.
//
// Settings are read from JSON or YAML; the file extension decides which.
// Keys missing from the file keep their defaults, and a missing file is not
// an error.
//
//	settings, err := config.Load(config.DefaultPath())
//	if err != nil {
//	    return err
//	}
//	orch := download.NewOrchestrator(t, r, f, settings.ToDownloadOptions())
//
// Timeouts are given in whole seconds; zero disables them.
package config
