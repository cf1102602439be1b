package common

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/tendermint/tmlibs/log"
)

// ErrPanic marks an error produced from a recovered panic.
var ErrPanic = errors.New("recovered panic")

// FuncRecover is deferred by callers that run code they do not trust to
// return errors. A panic is logged and stored in *errPtr.
func FuncRecover(l log.Logger, errPtr *error) {
	if err := recover(); err != nil {
		msg := ""
		switch errInfo := err.(type) {
		case error:
			msg = errInfo.Error()
		case string:
			msg = errInfo
		default:
			msg = fmt.Sprint(errInfo)
		}

		l.Error("FuncRecover", "error", msg)
		*errPtr = errors.Wrap(ErrPanic, msg)
	}
}
