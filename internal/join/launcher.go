package join

import (
	"os/exec"
	"runtime"

	"go.uber.org/zap"
)

// URILauncher hands a steam:// URI to the desktop protocol handler of
// the current platform. The launched process is not waited on.
type URILauncher struct {
	logger *zap.Logger
}

// NewURILauncher builds a launcher for the running platform.
func NewURILauncher(logger *zap.Logger) *URILauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &URILauncher{logger: logger}
}

// Launch starts the platform URI opener for the link.
func (l *URILauncher) Launch(link string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", link)
	case "darwin":
		cmd = exec.Command("open", link)
	default:
		cmd = exec.Command("xdg-open", link)
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	l.logger.Debug("launched uri handler", zap.String("link", link))
	return nil
}
