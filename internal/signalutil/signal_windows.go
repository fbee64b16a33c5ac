// +build windows !unix

package signalutil

import (
	"os"
)

// SignalNotify does nothing on Windows; no signal is ever sent to the supplied channel
func SignalNotify(c chan os.Signal) {
}

func IsSignalUSR1(s os.Signal) bool {
	return false
}
