package utils

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
)

// PathResolver provides robust path resolution for the placeserve binary
type PathResolver struct {
	executablePath string
	executableDir  string
	workingDir     string
	homeDir        string
	configDir      string
}

// NewPathResolver creates a new path resolver that determines the executable location
func NewPathResolver() (*PathResolver, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, err
	}

	// Resolve any symlinks to get the actual binary location
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return nil, err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warnf("Could not determine home directory: %v", err)
		homeDir = os.TempDir()
	}

	cwd, err := os.Getwd()
	if err != nil {
		log.Warnf("Could not determine working directory: %v", err)
		cwd = ""
	}

	pr := newPathResolver(execPath, cwd, homeDir)
	log.Debugf("PathResolver initialized: exec=%s, execDir=%s, configDir=%s",
		pr.executablePath, pr.executableDir, pr.configDir)
	return pr, nil
}

func newPathResolver(execPath, cwd, homeDir string) *PathResolver {
	return &PathResolver{
		executablePath: execPath,
		executableDir:  filepath.Dir(execPath),
		workingDir:     cwd,
		homeDir:        homeDir,
		configDir:      getConfigDir(homeDir),
	}
}

// getConfigDir returns the appropriate config directory for the platform
func getConfigDir(homeDir string) string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir, ".config", "placeserve")
	case "linux":
		if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
			return filepath.Join(configHome, "placeserve")
		}
		return filepath.Join(homeDir, ".config", "placeserve")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "placeserve")
		}
		return filepath.Join(homeDir, "AppData", "Roaming", "placeserve")
	default:
		return filepath.Join(homeDir, ".placeserve")
	}
}

// GetDataFile resolves a place data file. It tries, in order:
// 1. the path itself if absolute
// 2. relative to the executable directory
// 3. relative to the current working directory
// 4. the same file name under <configDir>/data
// If nothing exists the executable-relative path is returned, so callers
// report a useful location.
func (pr *PathResolver) GetDataFile(userSpecifiedPath string) string {
	candidates := pr.dataFileCandidates(userSpecifiedPath)
	for _, path := range candidates {
		if stat, err := os.Stat(path); err == nil && !stat.IsDir() {
			log.Debugf("Found data file: %s", path)
			return path
		}
		log.Debugf("Data file candidate not found: %s", path)
	}
	if filepath.IsAbs(userSpecifiedPath) {
		return userSpecifiedPath
	}
	return filepath.Join(pr.executableDir, userSpecifiedPath)
}

func (pr *PathResolver) dataFileCandidates(userSpecifiedPath string) []string {
	if filepath.IsAbs(userSpecifiedPath) {
		return []string{userSpecifiedPath}
	}

	candidates := []string{filepath.Join(pr.executableDir, userSpecifiedPath)}
	if pr.workingDir != "" {
		candidates = append(candidates, filepath.Join(pr.workingDir, userSpecifiedPath))
	}
	candidates = append(candidates, filepath.Join(pr.configDir, "data", filepath.Base(userSpecifiedPath)))
	return candidates
}

// GetRuntimeInfo returns debug information about the current runtime environment
func (pr *PathResolver) GetRuntimeInfo() map[string]string {
	info := map[string]string{
		"executable_path": pr.executablePath,
		"executable_dir":  pr.executableDir,
		"current_dir":     pr.workingDir,
		"home_dir":        pr.homeDir,
		"config_dir":      pr.configDir,
		"os":              runtime.GOOS,
		"arch":            runtime.GOARCH,
	}

	for _, envVar := range []string{"HOME", "XDG_CONFIG_HOME", "APPDATA"} {
		if value := os.Getenv(envVar); value != "" {
			info["env_"+strings.ToLower(envVar)] = value
		}
	}

	return info
}
