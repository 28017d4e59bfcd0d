package firmware

import "fmt"

// Config locates the build tree and names the staged files.
type Config struct {
	BuildDir    string `json:"build_dir"`
	VersionFile string `json:"version_file"`
	OutputDir   string `json:"output_dir"`
	// Product is the application directory inside each board build and the
	// middle part of staged file names.
	Product string `json:"product"`
	// Binary is the signed image file name.
	Binary string `json:"binary"`
	// Manifest writes manifest.json with sizes and digests.
	Manifest bool `json:"manifest"`
	// Bundle additionally packs the staged files into a tar.zst archive.
	Bundle bool `json:"bundle"`
	// Workers bounds concurrent digest computation.
	Workers int `json:"workers"`
}

// SetDefaults applies the layout of a west multi-board build.
func (c *Config) SetDefaults() {
	if c.BuildDir == "" {
		c.BuildDir = "build"
	}
	if c.VersionFile == "" {
		c.VersionFile = "VERSION"
	}
	if c.OutputDir == "" {
		c.OutputDir = "firmware_updates"
	}
	if c.Product == "" {
		c.Product = "rapidreach-fw"
	}
	if c.Binary == "" {
		c.Binary = "zephyr.signed.bin"
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
}

// Validate checks the names are usable.
func (c Config) Validate() error {
	if c.BuildDir == "" || c.OutputDir == "" || c.VersionFile == "" {
		return fmt.Errorf("firmware build_dir, version_file and output_dir are required")
	}
	if c.Binary == "" || c.Product == "" {
		return fmt.Errorf("firmware product and binary are required")
	}
	return nil
}
