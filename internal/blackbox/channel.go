package blackbox

import (
	"fmt"
	"io"
	"os"
)

const channelPattern = "smbc-*.seed"

// openChannel writes payload to a uniquely named temporary file and rewinds
// it for reading. The returned release func closes and removes the file; it
// must be called on every path once the file has been handed out.
func openChannel(dir string, payload []byte) (*os.File, func(), error) {
	f, err := os.CreateTemp(dir, channelPattern)
	if err != nil {
		return nil, nil, fmt.Errorf("blackbox: creating input channel: %w", err)
	}
	release := func() {
		f.Close()
		os.Remove(f.Name())
	}

	if _, err := f.Write(payload); err != nil {
		release()
		return nil, nil, fmt.Errorf("blackbox: writing input channel: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		release()
		return nil, nil, fmt.Errorf("blackbox: rewinding input channel: %w", err)
	}
	return f, release, nil
}
