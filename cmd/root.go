package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facewatch",
	Short: "Face recognition surveillance backend",
	Long: `FaceWatch is the backend for a browser-based face recognition camera.
The browser detects faces and computes descriptors; this service keeps the
known-face library, matches descriptors, records detections and sends alerts
by email, Web Push, MQTT and any shoutrrr service.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
