package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/signalnine/tankbench/internal/config"
)

const mavenBase = "https://repo1.maven.org/maven2/dev/robocode/tankroyale"

// ArtifactURL names the Maven Central location of a stack jar.
func ArtifactURL(artifact, version string) string {
	return fmt.Sprintf("%s/%s/%s/%s-%s.jar", mavenBase, artifact, version, artifact, version)
}

// JarPath is where a downloaded jar lands under destDir.
func JarPath(destDir, artifact, version string) string {
	return filepath.Join(destDir, fmt.Sprintf("%s-%s.jar", artifact, version))
}

// DownloadArtifact fetches one pinned jar, skipping the download when the
// file already exists. A non-empty wantSHA256 is verified against the
// downloaded (or cached) file.
func DownloadArtifact(artifact, version, destDir, wantSHA256 string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	target := JarPath(destDir, artifact, version)
	if _, err := os.Stat(target); err != nil {
		url := ArtifactURL(artifact, version)
		resp, err := http.Get(url)
		if err != nil {
			return "", fmt.Errorf("downloading %s: %w", url, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("downloading %s: status %s", url, resp.Status)
		}
		tmp := target + ".part"
		f, err := os.Create(tmp)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(f, resp.Body); err != nil {
			f.Close()
			os.Remove(tmp)
			return "", fmt.Errorf("writing %s: %w", tmp, err)
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		if err := os.Rename(tmp, target); err != nil {
			return "", err
		}
	}
	if wantSHA256 != "" {
		got, err := fileSHA256(target)
		if err != nil {
			return "", err
		}
		if got != wantSHA256 {
			return "", fmt.Errorf("checksum mismatch for %s: got %s, want %s", target, got, wantSHA256)
		}
	}
	return target, nil
}

// DownloadStack fetches the pinned server/recorder/GUI jars. checksums is
// an optional map keyed by artifact file name.
func DownloadStack(v config.Versions, destDir string, checksums map[string]string) (map[string]string, error) {
	artifacts := map[string]string{
		"server":   "robocode-tankroyale-server",
		"recorder": "robocode-tankroyale-recorder",
		"gui":      "robocode-tankroyale-gui",
	}
	versions := map[string]string{
		"server":   v.Server,
		"recorder": v.Recorder,
		"gui":      v.GUI,
	}
	out := make(map[string]string, len(artifacts))
	for _, name := range []string{"server", "recorder", "gui"} {
		if versions[name] == "" {
			continue
		}
		jar := fmt.Sprintf("%s-%s.jar", artifacts[name], versions[name])
		path, err := DownloadArtifact(artifacts[name], versions[name], destDir, checksums[jar])
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", name, err)
		}
		out[name] = path
	}
	return out, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
