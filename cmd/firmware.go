package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rapidreach/rrops/core/firmware"
	"github.com/rapidreach/rrops/infra/logger"
)

var fwBuildDir, fwVersionFile, fwOut string
var fwBundle bool

var firmwareCmd = &cobra.Command{
	Use:   "firmware",
	Short: "Firmware release tooling",
}

var firmwarePackageCmd = &cobra.Command{
	Use:   "package",
	Short: "Stage signed images of every board build for distribution",
	RunE:  runFirmwarePackage,
}

func init() {
	f := firmwarePackageCmd.Flags()
	f.StringVar(&fwBuildDir, "build-dir", "", "multi-board build directory (overrides firmware.build_dir)")
	f.StringVar(&fwVersionFile, "version-file", "", "VERSION file (overrides firmware.version_file)")
	f.StringVar(&fwOut, "out", "", "output directory (overrides firmware.output_dir)")
	f.BoolVar(&fwBundle, "bundle", false, "also write a tar.zst bundle")
	firmwareCmd.AddCommand(firmwarePackageCmd)
	rootCmd.AddCommand(firmwareCmd)
}

func runFirmwarePackage(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fc := cfg.Firmware
	if fwBuildDir != "" {
		fc.BuildDir = fwBuildDir
	}
	if fwVersionFile != "" {
		fc.VersionFile = fwVersionFile
	}
	if fwOut != "" {
		fc.OutputDir = fwOut
	}
	if fwBundle {
		fc.Bundle = true
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()
	_, err = firmware.NewPackager(fc, cmd.OutOrStdout(), logger.New("firmware")).Package(ctx)
	return err
}
