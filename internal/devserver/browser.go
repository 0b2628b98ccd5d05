package devserver

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/tabi-dev/tabi/internal/validation"
)

// openBrowser launches the platform browser at url. The URL is validated
// before it reaches an external command.
func (s *Server) openBrowser(ctx context.Context, url string) {
	// Give the listener a beat to come up.
	time.Sleep(150 * time.Millisecond)

	if err := validation.ValidateURL(url); err != nil {
		s.logger.Warn(ctx, err, "browser open skipped", "url", url)

		return
	}

	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		err = fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err != nil {
		s.logger.Warn(ctx, err, "browser open failed", "url", url)
	}
}
