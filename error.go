// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

import (
	"errors"
	"fmt"
)

// ErrConnectionDone is the terminal error of a connection the peer closed
// cleanly (or that was closed locally). Raised by Read and Write once the
// disconnect has been recorded.
var ErrConnectionDone = errors.New("coro: connection closed cleanly")

// ErrConnectionLost is the terminal error of a connection that was lost
// abnormally. Transport failures wrap it, so errors.Is reports the kind
// while the cause stays visible in the message.
var ErrConnectionLost = errors.New("coro: connection lost")

// LostError wraps a transport failure as an abnormal connection loss.
// Transport adapters pass the result to Conn.Lost.
func LostError(cause error) error {
	return fmt.Errorf("%w: %v", ErrConnectionLost, cause)
}
