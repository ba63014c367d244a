package stakekernel

import (
	"github.com/xepnet/xepd/infrastructure/logger"
)

var log = logger.RegisterSubSystem("STAK")
