package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arnavsurve/emuctl/internal/android"
	"github.com/arnavsurve/emuctl/internal/device"
	"github.com/arnavsurve/emuctl/internal/ios"
	"github.com/arnavsurve/emuctl/internal/ui"
)

func devicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Manage emulators and simulators",
		Long:  `List, boot, shutdown, create, wipe and delete Android AVDs and iOS simulators.`,
	}

	cmd.AddCommand(devicesListCmd())
	cmd.AddCommand(devicesBootCmd())
	cmd.AddCommand(devicesShutdownCmd())
	cmd.AddCommand(devicesCreateCmd())
	cmd.AddCommand(devicesDeleteCmd())
	cmd.AddCommand(devicesWipeCmd())
	cmd.AddCommand(devicesTypesCmd())
	cmd.AddCommand(devicesRuntimesCmd())
	cmd.AddCommand(devicesTargetsCmd())

	return cmd
}

// managers resolves both platform managers; a missing toolchain disables its
// platform rather than failing the command, unless that platform was
// explicitly requested.
func managers(required device.Platform) (*android.Manager, *ios.Manager, error) {
	androidMgr, androidErr := android.NewManager(cfg.AndroidSdkRoot)
	iosMgr, iosErr := ios.NewManager()

	if required == device.PlatformAndroid && androidErr != nil {
		return nil, nil, androidErr
	}
	if required == device.PlatformIOS && iosErr != nil {
		return nil, nil, iosErr
	}
	if androidErr != nil && iosErr != nil {
		return nil, nil, fmt.Errorf("no toolchain found: %v / %v", androidErr, iosErr)
	}
	return androidMgr, iosMgr, nil
}

func devicesListCmd() *cobra.Command {
	var (
		platform string
		jsonOut  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all virtual devices",
		Example: `  emuctl devices list
  emuctl devices list --platform android
  emuctl devices list --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			androidMgr, iosMgr, err := managers(device.Platform(platform))
			if err != nil {
				return err
			}

			var androidDevices []*device.AndroidDevice
			var iosDevices []*device.IosDevice

			if androidMgr != nil && platform != string(device.PlatformIOS) {
				if androidDevices, err = androidMgr.ListDevices(ctx); err != nil {
					return fmt.Errorf("failed to list AVDs: %w", err)
				}
			}
			if iosMgr != nil && platform != string(device.PlatformAndroid) {
				if iosDevices, err = iosMgr.ListDevices(ctx); err != nil {
					return fmt.Errorf("failed to list simulators: %w", err)
				}
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"android": androidDevices,
					"ios":     iosDevices,
				})
			}

			renderer := ui.NewRenderer()
			if platform != string(device.PlatformIOS) {
				renderer.RenderAndroidDevices(androidDevices, nil)
			}
			if platform != string(device.PlatformAndroid) {
				renderer.RenderIosDevices(iosDevices)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "", "Filter by platform (android, ios)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	return cmd
}

// resolveTarget finds which platform owns the identifier: the AVD name or a
// simulator UDID/name.
func resolveTarget(ctx context.Context, androidMgr *android.Manager, iosMgr *ios.Manager, ident string) (device.Platform, string, error) {
	if androidMgr != nil {
		devices, err := androidMgr.ListDevices(ctx)
		if err == nil {
			for _, d := range devices {
				if d.Name == ident {
					return device.PlatformAndroid, d.Name, nil
				}
			}
		}
	}
	if iosMgr != nil {
		devices, err := iosMgr.ListDevices(ctx)
		if err == nil {
			for _, d := range devices {
				if d.UDID == ident {
					return device.PlatformIOS, d.UDID, nil
				}
			}
			lower := strings.ToLower(ident)
			for _, d := range devices {
				if strings.ToLower(d.DeviceType) == lower || strings.ToLower(d.Name) == lower {
					return device.PlatformIOS, d.UDID, nil
				}
			}
		}
	}
	return "", "", fmt.Errorf("%w: %s", device.ErrDeviceNotFound, ident)
}

func devicesBootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "boot <device>",
		Short: "Boot a device",
		Long:  `Boot an AVD by name or a simulator by name or UDID, waiting for it to come up.`,
		Example: `  emuctl devices boot Pixel_7_API_34
  emuctl devices boot "iPhone 15 Pro"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			androidMgr, iosMgr, err := managers("")
			if err != nil {
				return err
			}
			renderer := ui.NewRenderer()

			platform, ident, err := resolveTarget(ctx, androidMgr, iosMgr, args[0])
			if err != nil {
				return err
			}

			renderer.StartSpinner("Booting %s...", args[0])
			if platform == device.PlatformAndroid {
				err = androidMgr.StartDevice(ctx, ident)
			} else {
				err = iosMgr.StartDevice(ctx, ident)
			}
			renderer.StopSpinner()
			if err != nil {
				renderer.Error("Boot failed: %v", err)
				return err
			}
			renderer.Success("%s is running", args[0])
			return nil
		},
	}
}

func devicesShutdownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown <device>",
		Short: "Shut a device down",
		Long:  `Shut down one device, or every running device with "shutdown all".`,
		Example: `  emuctl devices shutdown Pixel_7_API_34
  emuctl devices shutdown all`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			androidMgr, iosMgr, err := managers("")
			if err != nil {
				return err
			}
			renderer := ui.NewRenderer()

			if args[0] == "all" {
				return shutdownAll(ctx, androidMgr, iosMgr, renderer)
			}

			platform, ident, err := resolveTarget(ctx, androidMgr, iosMgr, args[0])
			if err != nil {
				return err
			}

			if platform == device.PlatformAndroid {
				err = androidMgr.StopDevice(ctx, ident)
			} else {
				err = iosMgr.StopDevice(ctx, ident)
			}
			if err != nil {
				renderer.Error("Shutdown failed: %v", err)
				return err
			}
			renderer.Success("%s stopped", args[0])
			return nil
		},
	}
}

// shutdownAll stops every running AVD one by one, then shuts the whole
// simulator pool down in a single simctl call.
func shutdownAll(ctx context.Context, androidMgr *android.Manager, iosMgr *ios.Manager, renderer *ui.Renderer) error {
	var failed []string
	if androidMgr != nil {
		devices, err := androidMgr.ListDevices(ctx)
		if err != nil {
			return fmt.Errorf("failed to list AVDs: %w", err)
		}
		for _, d := range devices {
			if !d.Running {
				continue
			}
			if err := androidMgr.StopDevice(ctx, d.Name); err != nil {
				renderer.Error("Shutdown of %s failed: %v", d.Name, err)
				failed = append(failed, d.Name)
				continue
			}
			renderer.Success("%s stopped", d.Name)
		}
	}
	if iosMgr != nil {
		if err := iosMgr.StopAll(ctx); err != nil {
			renderer.Error("Simulator shutdown failed: %v", err)
			failed = append(failed, "simulators")
		} else {
			renderer.Success("All simulators stopped")
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("shutdown incomplete: %s", strings.Join(failed, ", "))
	}
	return nil
}

func devicesCreateCmd() *cobra.Command {
	var (
		platform   string
		deviceType string
		version    string
		ramSize    string
		storage    string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a virtual device",
		Example: `  emuctl devices create Pixel_8_Test -p android --type pixel_8 --version 34
  emuctl devices create "Test Phone" -p ios --type "iPhone 15" --version com.apple.CoreSimulator.SimRuntime.iOS-17-0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			androidMgr, iosMgr, err := managers(device.Platform(platform))
			if err != nil {
				return err
			}
			renderer := ui.NewRenderer()

			request := device.NewConfig(args[0], deviceType, version)
			request.RAMSize = ramSize
			request.StorageSize = storage

			renderer.StartSpinner("Creating %s...", args[0])
			if device.Platform(platform) == device.PlatformAndroid {
				err = androidMgr.CreateDevice(ctx, request)
			} else {
				_, err = iosMgr.CreateDevice(ctx, request)
			}
			renderer.StopSpinner()
			if err != nil {
				renderer.Error("Create failed: %v", err)
				return err
			}
			renderer.Success("Created %s", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "android", "Target platform (android, ios)")
	cmd.Flags().StringVar(&deviceType, "type", "", "Hardware profile / device type identifier")
	cmd.Flags().StringVar(&version, "version", "", "API level (android) or runtime identifier (ios)")
	cmd.Flags().StringVar(&ramSize, "ram", "", "RAM size in MB (android)")
	cmd.Flags().StringVar(&storage, "storage", "", "Data partition size, e.g. 8192M (android)")
	_ = cmd.MarkFlagRequired("version")

	return cmd
}

func devicesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <device>",
		Short:   "Delete a device permanently",
		Example: `  emuctl devices delete Pixel_8_Test`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			androidMgr, iosMgr, err := managers("")
			if err != nil {
				return err
			}
			renderer := ui.NewRenderer()

			platform, ident, err := resolveTarget(ctx, androidMgr, iosMgr, args[0])
			if err != nil {
				return err
			}

			if platform == device.PlatformAndroid {
				err = androidMgr.DeleteDevice(ctx, ident)
			} else {
				err = iosMgr.DeleteDevice(ctx, ident)
			}
			if err != nil {
				renderer.Error("Delete failed: %v", err)
				return err
			}
			renderer.Success("Deleted %s", args[0])
			return nil
		},
	}
}

func devicesWipeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "wipe <device>",
		Short:   "Erase a device's user data",
		Long:    `Reset a device to factory state: user data goes, the definition stays.`,
		Example: `  emuctl devices wipe Pixel_7_API_34`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			androidMgr, iosMgr, err := managers("")
			if err != nil {
				return err
			}
			renderer := ui.NewRenderer()

			platform, ident, err := resolveTarget(ctx, androidMgr, iosMgr, args[0])
			if err != nil {
				return err
			}

			if platform == device.PlatformAndroid {
				err = androidMgr.WipeDevice(ctx, ident)
			} else {
				err = iosMgr.WipeDevice(ctx, ident)
			}
			if err != nil {
				renderer.Error("Wipe failed: %v", err)
				return err
			}
			renderer.Success("Wiped %s", args[0])
			return nil
		},
	}
}

func devicesTypesCmd() *cobra.Command {
	var (
		platform string
		category string
	)

	cmd := &cobra.Command{
		Use:   "types",
		Short: "List creatable device types",
		Example: `  emuctl devices types
  emuctl devices types -p android --category tablet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			androidMgr, iosMgr, err := managers(device.Platform(platform))
			if err != nil {
				return err
			}
			renderer := ui.NewRenderer()

			if androidMgr != nil && platform != string(device.PlatformIOS) {
				entries, err := androidMgr.ListDevicesByCategory(ctx, category)
				if err != nil {
					return err
				}
				renderer.Info("Android hardware profiles:")
				for _, e := range entries {
					renderer.Dim("%-30s %s", e.ID, e.Display)
				}
			}
			if iosMgr != nil && platform != string(device.PlatformAndroid) {
				entries, err := iosMgr.ListDeviceTypes(ctx)
				if err != nil {
					return err
				}
				renderer.Info("iOS device types:")
				for _, e := range entries {
					renderer.Dim("%-60s %s", e.ID, e.Display)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "", "Filter by platform (android, ios)")
	cmd.Flags().StringVar(&category, "category", "", "Filter Android profiles by category (phone, tablet, wear, tv, automotive, desktop)")
	return cmd
}

func devicesRuntimesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runtimes",
		Short: "List installed iOS runtimes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, iosMgr, err := managers(device.PlatformIOS)
			if err != nil {
				return err
			}
			entries, err := iosMgr.ListRuntimes(ctx)
			if err != nil {
				return err
			}
			renderer := ui.NewRenderer()
			for _, e := range entries {
				renderer.Info("%-12s %s", e.Display, e.ID)
			}
			return nil
		},
	}
}

func devicesTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List installable Android API levels",
		Long:  `Shows the API levels with at least one system image installed locally.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			androidMgr, _, err := managers(device.PlatformAndroid)
			if err != nil {
				return err
			}
			entries, err := androidMgr.ListAvailableTargets(ctx)
			if err != nil {
				return err
			}
			renderer := ui.NewRenderer()
			for _, e := range entries {
				renderer.Info("%s", e.Display)
			}
			return nil
		},
	}
}
