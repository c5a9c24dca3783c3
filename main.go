package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

func main() {
	// Initialize localization
	if err := InitLocale(); err != nil {
		log.Printf("Warning: %v", err)
	}

	checkUserDataDirPermissions()

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// Store init error for later display (after locale is loaded)
var initUserDataDirError error

func init() {
	userDataDir := getUserDataDir()
	if err := os.MkdirAll(userDataDir, 0755); err != nil {
		initUserDataDirError = err
	}
}

func checkUserDataDirPermissions() {
	if initUserDataDirError == nil {
		return
	}
	userDataDir := getUserDataDir()
	if runtime.GOOS == "darwin" && strings.Contains(initUserDataDirError.Error(), "operation not permitted") {
		fmt.Printf("⚠️  macOS blocked access to %s; grant your terminal Full Disk Access or set browser_profile_path.\n", userDataDir)
	}
	log.Printf("Warning: could not create %s: %v", userDataDir, initUserDataDirError)
}

func getUserDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./shopflow-data"
	}
	return filepath.Join(home, ".shopflow")
}
