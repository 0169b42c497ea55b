package subprocess

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/studioflow/toolbridge/internal/errors"
)

// peerBinaryName is the name of the peer executable searched in PATH and
// common install locations.
const peerBinaryName = "toolbridge-peer"

// FindPeerBinary locates the peer executable.
//
// If an explicit path is configured it is used and only it. Otherwise the
// search order is PATH, then common install locations. A missing binary is
// an expected configuration state: the returned PeerNotFoundError must be
// treated as "no peer available", not as a fatal condition.
func FindPeerBinary(log *slog.Logger, explicitPath string) (string, error) {
	if explicitPath != "" {
		log.Debug("Using explicit peer path", "peer_path", explicitPath)

		if _, err := os.Stat(explicitPath); err == nil {
			return explicitPath, nil
		}

		log.Debug("Explicit peer path not found", "peer_path", explicitPath)

		return "", &errors.PeerNotFoundError{SearchedPaths: []string{explicitPath}}
	}

	searchedPaths := make([]string, 0, 4)

	log.Debug("Searching for peer binary in PATH", "binary", peerBinaryName)

	if path, err := exec.LookPath(peerBinaryName); err == nil {
		log.Debug("Found peer binary in PATH", "path", path)

		return path, nil
	}

	searchedPaths = append(searchedPaths, "$PATH")

	commonPaths := []string{
		"/usr/local/bin/" + peerBinaryName,
		"/usr/bin/" + peerBinaryName,
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		commonPaths = append(commonPaths, filepath.Join(homeDir, ".local/bin", peerBinaryName))
	}

	for _, path := range commonPaths {
		searchedPaths = append(searchedPaths, path)
		log.Debug("Checking common path", "path", path)

		if _, err := os.Stat(path); err == nil {
			log.Debug("Found peer binary at common path", "path", path)

			return path, nil
		}
	}

	log.Debug("Peer binary not found in any searched paths", "searched_paths", searchedPaths)

	return "", &errors.PeerNotFoundError{SearchedPaths: searchedPaths}
}
