package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"shelfscan/internal/camera"
	"shelfscan/internal/config"
	"shelfscan/internal/imageio"
	"shelfscan/internal/inventory"
)

const probeCode = "shelfscan-preflight-probe"

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCamera verifies that the configured frame source can be opened
// without acquiring it.
func CheckCamera(cfg *config.Config) Result {
	const name = "Camera"

	switch cfg.Camera.Source {
	case config.SourceReplay:
		files, err := imageio.ListDir(cfg.Camera.ReplayDir)
		if err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("replay %s (error: %v)", cfg.Camera.ReplayDir, err)}
		}
		if len(files) == 0 {
			return Result{Name: name, Detail: fmt.Sprintf("replay %s (error: no images)", cfg.Camera.ReplayDir)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("replay %s (%d images)", cfg.Camera.ReplayDir, len(files))}
	default:
		if err := camera.CheckDevice(cfg.Camera.Device); err != nil {
			var camErr *camera.Error
			if errors.As(err, &camErr) {
				return Result{Name: name, Detail: camErr.Guidance()}
			}
			return Result{Name: name, Detail: err.Error()}
		}
		probe := ProbeCamera(cfg.Camera.Device)
		return Result{Name: name, Passed: true, Detail: probe.Detail()}
	}
}

// CheckInventory verifies that the inventory repository answers lookups.
func CheckInventory(ctx context.Context, cfg *config.Config) Result {
	switch cfg.Inventory.Backend {
	case config.BackendHTTP:
		return CheckInventoryAPI(ctx, cfg.Inventory.BaseURL, cfg.Inventory.APIKey)
	default:
		return CheckInventoryDatabase(ctx, cfg.Inventory.DatabasePath)
	}
}

// CheckInventoryDatabase opens the SQLite inventory and reports its schema version.
func CheckInventoryDatabase(ctx context.Context, path string) Result {
	const name = "Inventory database"

	store, err := inventory.OpenPath(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer store.Close()

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (schema %s)", path, version)}
}

// CheckInventoryAPI verifies remote inventory connectivity and authentication
// by looking up a code that is not expected to exist.
func CheckInventoryAPI(ctx context.Context, baseURL, apiKey string) Result {
	const name = "Inventory API"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/items/by-code/"+url.PathEscape(probeCode), nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("lookup check failed (%v)", err)}
	}
	if key := strings.TrimSpace(apiKey); key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid api key)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("lookup check failed (%d)", resp.StatusCode)}
	}
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "lookup check timed out (inventory API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "lookup check timed out (inventory API unreachable)"
	}
	return fmt.Sprintf("lookup check failed (%v)", err)
}
