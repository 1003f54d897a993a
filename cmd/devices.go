// cmd/devices.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/alarmdetect/internal/audio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available audio capture devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		capture := audio.New(audio.DefaultConfig())
		if err := capture.Init(); err != nil {
			return err
		}
		defer capture.Close()

		infos, err := capture.ListDevices()
		if err != nil {
			return err
		}

		if len(infos) == 0 {
			fmt.Println("no capture devices found")
			return nil
		}

		for i, info := range infos {
			fmt.Printf("%3d: %s\n", i, info.Name())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
