//go:build !unix

package speech

import "os"

func suspendProcess(*os.Process) error {
	return errPauseUnsupported
}

func continueProcess(*os.Process) error {
	return errPauseUnsupported
}
